package service

import "fmt"

func twinQueuedEmailTemplate(name, jobURL, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s twin is being built", appName)
	body := fmt.Sprintf(`Hi %s,

Thanks for finishing onboarding. We have your samples and your digital twin is now queued for training.

You can check its progress here:
%s

Training usually takes a few hours. We'll let you know when it's ready.

Best,
The %s Team`, name, jobURL, appName)

	return subject, body
}
