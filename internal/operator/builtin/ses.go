// ABOUTME: SES operator for sending email via Amazon Simple Email Service
// ABOUTME: Uses aws-sdk-go's ses client; credentials fall back to env/IAM role

package builtin

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"

	"github.com/sarlalian/newton/pkg/types"
)

// SESOperator sends one email through AWS SES.
type SESOperator struct{}

// NewSESOperator constructs the SES operator.
func NewSESOperator() *SESOperator { return &SESOperator{} }

func (o *SESOperator) Name() string { return "ses" }

func (o *SESOperator) stringSlice(raw map[string]interface{}, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, i)
		}
		out[i] = s
	}
	return out, nil
}

func (o *SESOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	for _, key := range []string{"region", "from", "subject", "body"} {
		if _, ok := raw[key].(string); !ok {
			return fmt.Errorf("ses operator requires a string '%s'", key)
		}
	}
	to, err := o.stringSlice(raw, "to")
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("ses operator requires at least one 'to' recipient")
	}
	return nil
}

func (o *SESOperator) Execute(ctx context.Context, raw map[string]interface{}, _ types.ExecutionContext) (interface{}, error) {
	region := raw["region"].(string)
	from := raw["from"].(string)
	subject := raw["subject"].(string)
	body := raw["body"].(string)
	to, _ := o.stringSlice(raw, "to")
	cc, _ := o.stringSlice(raw, "cc")
	bcc, _ := o.stringSlice(raw, "bcc")

	awsConfig := &aws.Config{Region: aws.String(region)}
	if accessKey, ok := raw["access_key_id"].(string); ok && accessKey != "" {
		secretKey, _ := raw["secret_access_key"].(string)
		sessionToken, _ := raw["session_token"].(string)
		awsConfig.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, sessionToken)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("ses: creating AWS session: %w", err)
	}
	client := ses.New(sess)

	toAddrs := aws.StringSlice(to)
	var ccAddrs, bccAddrs []*string
	if len(cc) > 0 {
		ccAddrs = aws.StringSlice(cc)
	}
	if len(bcc) > 0 {
		bccAddrs = aws.StringSlice(bcc)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &ses.Destination{
			ToAddresses:  toAddrs,
			CcAddresses:  ccAddrs,
			BccAddresses: bccAddrs,
		},
		Message: &ses.Message{
			Subject: &ses.Content{Data: aws.String(subject)},
			Body:    &ses.Body{Text: &ses.Content{Data: aws.String(body)}},
		},
	}

	out, err := client.SendEmailWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses: sending email: %w", err)
	}

	return map[string]interface{}{
		"to":         to,
		"message_id": aws.StringValue(out.MessageId),
		"sent":       true,
	}, nil
}
