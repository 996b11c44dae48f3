package command

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// payload is the accepted shape of a Command packet body:
//
//	<command>
//	  <commandString>ls -la</commandString>
//	  <binaryData>aGVsbG8=</binaryData>   <!-- optional -->
//	</command>
//
// Anything else is rejected outright; the protocol has no partial accepts.
type payload struct {
	XMLName       xml.Name `xml:"command"`
	CommandString *string  `xml:"commandString"`
	BinaryData    string   `xml:"binaryData"`
}

// ParseBody parses body into a Request. When a binary attachment is present
// it is base64-decoded and persisted to a uniquely named temporary file whose
// path lands in Request.BinaryPath. Every structural deviation is an error;
// on error no temporary file is left behind.
func ParseBody(guid uuid.UUID, body []byte) (Request, error) {
	var doc payload
	if err := xml.Unmarshal(body, &doc); err != nil {
		return Request{}, fmt.Errorf("parse command xml: %w", err)
	}
	if doc.CommandString == nil {
		return Request{}, fmt.Errorf("command xml has no commandString element")
	}

	req := Request{Command: *doc.CommandString, GUID: guid}

	if data := strings.TrimSpace(doc.BinaryData); data != "" {
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return Request{}, fmt.Errorf("decode binaryData: %w", err)
		}
		if len(raw) == 0 {
			return Request{}, fmt.Errorf("binaryData decoded to zero bytes")
		}
		path, err := persistAttachment(raw)
		if err != nil {
			return Request{}, err
		}
		req.BinaryPath = path
	}

	return req, nil
}

func persistAttachment(raw []byte) (string, error) {
	f, err := os.CreateTemp("", "serclient-bin-*")
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write attachment file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close attachment file: %w", err)
	}
	return f.Name(), nil
}
