package repository

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrMediaNotFound   = errors.New("media file not found")
	ErrJobNotFound     = errors.New("twin job not found")
)
