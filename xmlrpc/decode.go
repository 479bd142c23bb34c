package xmlrpc

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// nextElement returns the next start or end element, skipping character
// data, comments and processing instructions.
func nextElement(d *xml.Decoder) (xml.Token, error) {
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			return t, nil
		case xml.EndElement:
			return t, nil
		}
	}
}

func expectStart(d *xml.Decoder, name string) error {
	token, err := nextElement(d)
	if err != nil {
		return err
	}
	start, ok := token.(xml.StartElement)
	if !ok || start.Name.Local != name {
		return errors.Errorf("xmlrpc: expected <%s>", name)
	}
	return nil
}

func expectEnd(d *xml.Decoder, name string) error {
	token, err := nextElement(d)
	if err != nil {
		return err
	}
	end, ok := token.(xml.EndElement)
	if !ok || end.Name.Local != name {
		return errors.Errorf("xmlrpc: expected </%s>", name)
	}
	return nil
}

// elementText collects the character data of a scalar element whose start
// tag has been read. The end tag is consumed.
func elementText(d *xml.Decoder) (string, error) {
	var text []byte
	for {
		token, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.StartElement:
			return "", errors.Errorf("xmlrpc: unexpected <%s> in scalar", t.Name.Local)
		case xml.EndElement:
			return string(text), nil
		}
	}
}

// decodeValue reads a value after its <value> tag has been read. On success
// the closing </value> has been consumed as well.
func decodeValue(d *xml.Decoder) (interface{}, error) {
	var text []byte
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.StartElement:
			value, err := decodeTyped(d, t)
			if err != nil {
				return nil, err
			}
			if err := expectEnd(d, "value"); err != nil {
				return nil, err
			}
			return value, nil
		case xml.EndElement:
			// A value without a type element is a string.
			return string(text), nil
		}
	}
}

func decodeTyped(d *xml.Decoder, start xml.StartElement) (interface{}, error) {
	switch start.Name.Local {
	case "array":
		return decodeArray(d)
	case "struct":
		return decodeStruct(d)
	case "nil":
		if _, err := elementText(d); err != nil {
			return nil, err
		}
		return nil, nil
	}

	text, err := elementText(d)
	if err != nil {
		return nil, err
	}
	switch start.Name.Local {
	case "string":
		return text, nil
	case "boolean":
		switch strings.TrimSpace(text) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, errors.Errorf("xmlrpc: invalid boolean %q", text)
	case "i4", "int":
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid int")
		}
		return int32(i), nil
	case "i8":
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid i8")
		}
		return i, nil
	case "double":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid double")
		}
		return f, nil
	case "base64":
		bs, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid base64")
		}
		return bs, nil
	case "dateTime.iso8601":
		t, err := time.Parse(iso8601, strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid dateTime")
		}
		return t, nil
	}
	return nil, errors.Errorf("xmlrpc: unsupported type <%s>", start.Name.Local)
}

func decodeArray(d *xml.Decoder) ([]interface{}, error) {
	if err := expectStart(d, "data"); err != nil {
		return nil, err
	}
	values := []interface{}{}
	for {
		token, err := nextElement(d)
		if err != nil {
			return nil, err
		}
		if _, ok := token.(xml.EndElement); ok {
			break
		}
		if start := token.(xml.StartElement); start.Name.Local != "value" {
			return nil, errors.Errorf("xmlrpc: unexpected <%s> in array", start.Name.Local)
		}
		value, err := decodeValue(d)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if err := expectEnd(d, "array"); err != nil {
		return nil, err
	}
	return values, nil
}

func decodeStruct(d *xml.Decoder) (map[string]interface{}, error) {
	members := make(map[string]interface{})
	for {
		token, err := nextElement(d)
		if err != nil {
			return nil, err
		}
		if _, ok := token.(xml.EndElement); ok {
			return members, nil
		}
		if start := token.(xml.StartElement); start.Name.Local != "member" {
			return nil, errors.Errorf("xmlrpc: unexpected <%s> in struct", start.Name.Local)
		}
		name, value, err := decodeMember(d)
		if err != nil {
			return nil, err
		}
		members[name] = value
	}
}

func decodeMember(d *xml.Decoder) (string, interface{}, error) {
	var name string
	var value interface{}
	named := false
	for {
		token, err := nextElement(d)
		if err != nil {
			return "", nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			if !named {
				return "", nil, errors.New("xmlrpc: struct member without name")
			}
			return name, value, nil
		}
		switch start.Name.Local {
		case "name":
			if name, err = elementText(d); err != nil {
				return "", nil, err
			}
			named = true
		case "value":
			if value, err = decodeValue(d); err != nil {
				return "", nil, err
			}
		default:
			return "", nil, errors.Errorf("xmlrpc: unexpected <%s> in member", start.Name.Local)
		}
	}
}

func decodeRequest(d *xml.Decoder) (string, []interface{}, error) {
	if err := expectStart(d, "methodCall"); err != nil {
		return "", nil, err
	}
	if err := expectStart(d, "methodName"); err != nil {
		return "", nil, err
	}
	method, err := elementText(d)
	if err != nil {
		return "", nil, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return "", nil, errors.New("xmlrpc: empty methodName")
	}

	token, err := nextElement(d)
	if err != nil {
		return "", nil, err
	}
	if _, ok := token.(xml.EndElement); ok {
		// methodCall without <params>
		return method, nil, nil
	}
	if start := token.(xml.StartElement); start.Name.Local != "params" {
		return "", nil, errors.Errorf("xmlrpc: unexpected <%s> in methodCall", start.Name.Local)
	}

	var params []interface{}
	for {
		token, err := nextElement(d)
		if err != nil {
			return "", nil, err
		}
		if _, ok := token.(xml.EndElement); ok {
			return method, params, nil
		}
		if start := token.(xml.StartElement); start.Name.Local != "param" {
			return "", nil, errors.Errorf("xmlrpc: unexpected <%s> in params", start.Name.Local)
		}
		if err := expectStart(d, "value"); err != nil {
			return "", nil, err
		}
		value, err := decodeValue(d)
		if err != nil {
			return "", nil, err
		}
		if err := expectEnd(d, "param"); err != nil {
			return "", nil, err
		}
		params = append(params, value)
	}
}

// decodeResponse returns the result of a methodResponse, or a *Fault error
// when the response carries a fault.
func decodeResponse(d *xml.Decoder) (interface{}, error) {
	if err := expectStart(d, "methodResponse"); err != nil {
		return nil, err
	}
	token, err := nextElement(d)
	if err != nil {
		return nil, err
	}
	start, ok := token.(xml.StartElement)
	if !ok {
		return nil, errors.New("xmlrpc: empty methodResponse")
	}

	switch start.Name.Local {
	case "params":
		if err := expectStart(d, "param"); err != nil {
			return nil, err
		}
		if err := expectStart(d, "value"); err != nil {
			return nil, err
		}
		return decodeValue(d)
	case "fault":
		if err := expectStart(d, "value"); err != nil {
			return nil, err
		}
		value, err := decodeValue(d)
		if err != nil {
			return nil, err
		}
		return nil, faultFromValue(value)
	}
	return nil, errors.Errorf("xmlrpc: unexpected <%s> in methodResponse", start.Name.Local)
}

func faultFromValue(value interface{}) error {
	members, ok := value.(map[string]interface{})
	if !ok {
		return errors.New("xmlrpc: malformed fault response")
	}
	code, ok := members["faultCode"].(int32)
	if !ok {
		return errors.New("xmlrpc: fault without faultCode")
	}
	message, ok := members["faultString"].(string)
	if !ok {
		return errors.New("xmlrpc: fault without faultString")
	}
	return &Fault{Code: int(code), Message: message}
}
