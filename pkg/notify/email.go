// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"net/url"
	"strconv"
	"time"

	"github.com/moov-io/banklink/pkg/config"

	"github.com/ory/mail/v3"
)

type Email struct {
	cfg    *config.Email
	dialer *mail.Dialer
}

type EmailTemplateData struct {
	CompanyName string // e.g. Moov
	Verb        string // e.g. was linked, failed to link
	MerchantID  string
	RequestID   string
	Outcome     string
	Detail      string
}

var (
	// Ensure the default template validates against our data struct
	_ = config.DefaultEmailTemplate.Execute(ioutil.Discard, EmailTemplateData{})
)

func NewEmail(cfg *config.Email) (*Email, error) {
	if cfg == nil {
		return nil, errors.New("email: nil config")
	}
	dialer, err := setupDialer(cfg.ConnectionURI)
	if err != nil {
		return nil, err
	}
	return &Email{
		cfg:    cfg,
		dialer: dialer,
	}, nil
}

func setupDialer(uri string) (*mail.Dialer, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("email: unable to parse ConnectionURI: %v", err)
	}
	if u.Hostname() == "" {
		return nil, errors.New("email: missing hostname in ConnectionURI")
	}

	port, _ := strconv.ParseInt(u.Port(), 10, 64)
	if port == 0 {
		port = 25
	}
	password, _ := u.User.Password()
	dialer := mail.NewDialer(u.Hostname(), int(port), u.User.Username(), password)

	if u.Scheme == "smtps" {
		dialer.SSL = true
	}
	if u.Query().Get("insecure_skip_verify") == "true" {
		dialer.TLSConfig = &tls.Config{
			InsecureSkipVerify: true, // #nosec G402
			ServerName:         u.Hostname(),
		}
	}
	return dialer, nil
}

func (mailer *Email) Info(msg *Message) error {
	return mailer.send(linked, msg)
}

func (mailer *Email) Critical(msg *Message) error {
	return mailer.send(failed, msg)
}

func (mailer *Email) send(s status, msg *Message) error {
	contents, err := marshalEmail(mailer.cfg, s, msg)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", mailer.cfg.From)
	m.SetHeader("To", mailer.cfg.To...)
	m.SetHeader("Subject", fmt.Sprintf("Bank link %s %s", msg.RequestID, s.verb()))
	m.SetBody("text/plain", contents)

	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	if err := mailer.dialer.DialAndSend(ctx, m); err != nil {
		return fmt.Errorf("email: %v", err)
	}
	return nil
}

func marshalEmail(cfg *config.Email, s status, msg *Message) (string, error) {
	data := EmailTemplateData{
		CompanyName: cfg.CompanyName,
		Verb:        s.verb(),
		MerchantID:  msg.MerchantID,
		RequestID:   msg.RequestID,
		Outcome:     string(msg.Outcome),
		Detail:      msg.Detail,
	}
	var buf bytes.Buffer
	if err := cfg.Tmpl().Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
