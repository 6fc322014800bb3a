// ABOUTME: Email operator for sending notifications via SMTP
// ABOUTME: Supports TLS, authentication, and multiple recipients

package builtin

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sarlalian/newton/pkg/types"
)

// EmailOperator sends one email over SMTP.
type EmailOperator struct{}

// NewEmailOperator constructs the email operator.
func NewEmailOperator() *EmailOperator { return &EmailOperator{} }

func (o *EmailOperator) Name() string { return "email" }

func (o *EmailOperator) stringSlice(raw map[string]interface{}, key string) ([]string, error) {
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

func (o *EmailOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	for _, key := range []string{"host", "from", "subject", "body"} {
		if _, ok := raw[key].(string); !ok {
			return fmt.Errorf("email operator requires a string '%s'", key)
		}
	}
	to, err := o.stringSlice(raw, "to")
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("email operator requires at least one 'to' recipient")
	}
	return nil
}

func (o *EmailOperator) Execute(ctx context.Context, raw map[string]interface{}, _ types.ExecutionContext) (interface{}, error) {
	host := raw["host"].(string)
	port := 587
	if v, ok := raw["port"]; ok {
		if n, ok := v.(int); ok {
			port = n
		} else if f, ok := v.(float64); ok {
			port = int(f)
		}
	}
	from := raw["from"].(string)
	subject := raw["subject"].(string)
	body := raw["body"].(string)
	to, _ := o.stringSlice(raw, "to")
	cc, _ := o.stringSlice(raw, "cc")
	bcc, _ := o.stringSlice(raw, "bcc")

	isHTML, _ := raw["is_html"].(bool)
	useTLS, hasUseTLS := raw["use_tls"].(bool)
	if !hasUseTLS {
		useTLS = true
	}
	insecureSkipVerify, _ := raw["insecure_skip_verify"].(bool)

	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}

	allRecipients := append(append(append([]string{}, to...), cc...), bcc...)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	if len(cc) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(cc, ", ")))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType))
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", host, port)

	var auth smtp.Auth
	if username, ok := raw["username"].(string); ok && username != "" {
		password, _ := raw["password"].(string)
		auth = smtp.PlainAuth("", username, password, host)
	}

	var sendErr error
	if useTLS {
		sendErr = sendTLS(addr, host, auth, from, allRecipients, []byte(msg.String()), insecureSkipVerify)
	} else {
		sendErr = smtp.SendMail(addr, auth, from, allRecipients, []byte(msg.String()))
	}
	if sendErr != nil {
		return nil, fmt.Errorf("email: sending via %s: %w", addr, sendErr)
	}

	return map[string]interface{}{
		"to":      to,
		"subject": subject,
		"sent":    true,
	}, nil
}

func sendTLS(addr, host string, auth smtp.Auth, from string, recipients []string, msg []byte, insecureSkipVerify bool) error {
	tlsConfig := &tls.Config{ServerName: host, InsecureSkipVerify: insecureSkipVerify}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, r := range recipients {
		if err := client.Rcpt(r); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
