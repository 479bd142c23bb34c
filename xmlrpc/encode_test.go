package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"testing"
	"time"
)

func TestEncodeScalars(t *testing.T) {
	cases := []struct {
		value    interface{}
		expected string
	}{
		{nil, ""},
		{true, "<boolean>1</boolean>"},
		{false, "<boolean>0</boolean>"},
		{42, "<int>42</int>"},
		{int64(1) << 40, "<i8>1099511627776</i8>"},
		{uint8(7), "<int>7</int>"},
		{3.14, "<double>3.14</double>"},
		{"Head/Touch/Front", "<string>Head/Touch/Front</string>"},
		{"a<b & c", "<string>a&lt;b &amp; c</string>"},
		{[]byte("ABCDEFG"), "<base64>QUJDREVGRw==</base64>"},
		{time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), "<dateTime.iso8601>20261018T09:30:00</dateTime.iso8601>"},
	}
	for _, c := range cases {
		var buffer bytes.Buffer
		if err := encodeValue(&buffer, c.value); err != nil {
			t.Errorf("%v: %s", c.value, err)
			continue
		}
		if s := buffer.String(); s != c.expected {
			t.Errorf("%v: got %s", c.value, s)
		}
	}
}

func TestEncodeArray(t *testing.T) {
	expected := "<array><data>"
	expected += "<value><string>LArm</string></value>"
	expected += "<value><boolean>1</boolean></value>"
	expected += "<value><array><data></data></array></value>"
	expected += "</data></array>"

	for _, value := range []interface{}{
		[...]interface{}{"LArm", true, []interface{}{}},
		[]interface{}{"LArm", true, []interface{}{}},
	} {
		var buffer bytes.Buffer
		if err := encodeValue(&buffer, value); err != nil {
			t.Error(err)
		}
		if s := buffer.String(); s != expected {
			t.Error(s)
		}
	}
}

func TestEncodeStructSortsMembers(t *testing.T) {
	var buffer bytes.Buffer
	members := map[string]interface{}{
		"upperBound": 139,
		"lowerBound": 18,
	}
	if err := encodeValue(&buffer, members); err != nil {
		t.Error(err)
	}
	expected := "<struct><member>"
	expected += "<name>lowerBound</name>"
	expected += "<value><int>18</int></value>"
	expected += "</member><member>"
	expected += "<name>upperBound</name>"
	expected += "<value><int>139</int></value>"
	expected += "</member></struct>"
	if s := buffer.String(); s != expected {
		t.Error(s)
	}
}

func TestEncodeRejectsUnsupported(t *testing.T) {
	var buffer bytes.Buffer
	if err := encodeValue(&buffer, map[int]string{1: "a"}); err == nil {
		t.Error("expected an error for non-string struct keys")
	}
	if err := encodeValue(&buffer, struct{ X int }{1}); err == nil {
		t.Error("expected an error for go structs")
	}
}

func TestEncodeRequest(t *testing.T) {
	var buffer bytes.Buffer
	if err := encodeRequest(&buffer, "subscribeEvent", "naox", "TouchChanged", 7); err != nil {
		t.Fatal(err)
	}
	expected := xml.Header
	expected += "<methodCall>"
	expected += "<methodName>subscribeEvent</methodName>"
	expected += "<params>"
	expected += "<param><value><string>naox</string></value></param>"
	expected += "<param><value><string>TouchChanged</string></value></param>"
	expected += "<param><value><int>7</int></value></param>"
	expected += "</params>"
	expected += "</methodCall>"
	if s := buffer.String(); s != expected {
		t.Error(s)
	}
}

func TestEncodeResponse(t *testing.T) {
	var buffer bytes.Buffer
	if err := encodeResponse(&buffer, 42); err != nil {
		t.Fatal(err)
	}
	expected := xml.Header
	expected += "<methodResponse>"
	expected += "<params><param>"
	expected += "<value><int>42</int></value>"
	expected += "</param></params>"
	expected += "</methodResponse>"
	if s := buffer.String(); s != expected {
		t.Error(s)
	}
}

func TestEncodeFault(t *testing.T) {
	var buffer bytes.Buffer
	encodeFault(&buffer, &Fault{Code: 42, Message: "failed"})
	expected := xml.Header
	expected += "<methodResponse><fault><value>"
	expected += "<struct><member>"
	expected += "<name>faultCode</name>"
	expected += "<value><int>42</int></value>"
	expected += "</member><member>"
	expected += "<name>faultString</name>"
	expected += "<value><string>failed</string></value>"
	expected += "</member></struct>"
	expected += "</value></fault></methodResponse>"
	if s := buffer.String(); s != expected {
		t.Error(s)
	}
}
