package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"go-giftcard-verifier/images"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Attachment struct {
	Filename string
	MainType string
	SubType  string
	Data     []byte
}

type Message struct {
	Subject     string
	Body        string
	Attachments []Attachment
}

// VerificationRequest is the operator notice for a code submitted for review.
func VerificationRequest(brand, code, email string, at time.Time) Message {
	return Message{
		Subject: "Gift Safer Verification Request - " + brand,
		Body: "Verification request received.\n\n" +
			"Brand: " + brand + "\n" +
			"Code: " + code + "\n" +
			"Customer Email: " + email + "\n" +
			"Received At: " + isoSeconds(at) + "\n",
	}
}

// ScanUpload is the operator notice for a captured front/back pair.
func ScanUpload(mode, brand, email string, front, back images.DataURLPayload, at time.Time) Message {
	prefix := strings.ReplaceAll(strings.ToLower(brand), " ", "_")
	return Message{
		Subject: fmt.Sprintf("Gift Safer %s Upload - %s", cases.Title(language.Und).String(mode), brand),
		Body: "Scan upload received.\n\n" +
			"Mode: " + mode + "\n" +
			"Brand: " + brand + "\n" +
			"Customer Email: " + email + "\n" +
			"Received At: " + isoSeconds(at) + "\n",
		Attachments: []Attachment{
			{Filename: prefix + "_front." + front.SubType, MainType: front.MainType, SubType: front.SubType, Data: front.Data},
			{Filename: prefix + "_back." + back.SubType, MainType: back.MainType, SubType: back.SubType, Data: back.Data},
		},
	}
}

func isoSeconds(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05-07:00")
}

// build renders msg as an RFC 5322 message. Without attachments the body is
// sent as plain text; otherwise as multipart/mixed.
func build(from, to string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	writeHeader := func(k, v string) {
		buf.WriteString(k + ": " + v + "\r\n")
	}
	writeHeader("From", from)
	writeHeader("To", to)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("MIME-Version", "1.0")

	if len(msg.Attachments) == 0 {
		writeHeader("Content-Type", "text/plain; charset=utf-8")
		writeHeader("Content-Transfer-Encoding", "8bit")
		buf.WriteString("\r\n")
		buf.WriteString(msg.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	writeHeader("Content-Type", `multipart/mixed; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.MainType + "/" + a.SubType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, a.Data); err != nil {
			return nil, fmt.Errorf("failed to encode attachment %s: %w", a.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines wraps at 76 characters as MIME requires.
func writeBase64Lines(w interface{ Write([]byte) (int, error) }, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
