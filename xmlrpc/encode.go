// Package xmlrpc is a small XML-RPC client and server used to talk to the
// robot process bus.
package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Layout of dateTime.iso8601 values.
const iso8601 = "20060102T15:04:05"

func writeEscaped(buf *bytes.Buffer, s string) {
	xml.EscapeText(buf, []byte(s))
}

// encodeValue writes the body of a <value> element. A nil value writes
// nothing, which the receiving side reads back as an empty string.
func encodeValue(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		buf.WriteString("<base64>")
		buf.WriteString(base64.StdEncoding.EncodeToString(v))
		buf.WriteString("</base64>")
		return nil
	case time.Time:
		buf.WriteString("<dateTime.iso8601>")
		buf.WriteString(v.Format(iso8601))
		buf.WriteString("</dateTime.iso8601>")
		return nil
	}

	val := reflect.ValueOf(value)
	switch val.Kind() {
	case reflect.Bool:
		if val.Bool() {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		encodeInt(buf, val.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := val.Uint()
		if u > math.MaxInt64 {
			return errors.Errorf("xmlrpc: unsigned value %d overflows i8", u)
		}
		encodeInt(buf, int64(u))
	case reflect.Float32, reflect.Float64:
		buf.WriteString("<double>")
		buf.WriteString(strconv.FormatFloat(val.Float(), 'g', -1, 64))
		buf.WriteString("</double>")
	case reflect.String:
		buf.WriteString("<string>")
		writeEscaped(buf, val.String())
		buf.WriteString("</string>")
	case reflect.Array, reflect.Slice:
		buf.WriteString("<array><data>")
		for i := 0; i < val.Len(); i++ {
			buf.WriteString("<value>")
			if err := encodeValue(buf, val.Index(i).Interface()); err != nil {
				return err
			}
			buf.WriteString("</value>")
		}
		buf.WriteString("</data></array>")
	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return errors.Errorf("xmlrpc: struct keys must be strings, not %s", val.Type().Key())
		}
		keys := make([]string, 0, val.Len())
		for _, key := range val.MapKeys() {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		buf.WriteString("<struct>")
		for _, key := range keys {
			buf.WriteString("<member><name>")
			writeEscaped(buf, key)
			buf.WriteString("</name><value>")
			member := val.MapIndex(reflect.ValueOf(key).Convert(val.Type().Key()))
			if err := encodeValue(buf, member.Interface()); err != nil {
				return err
			}
			buf.WriteString("</value></member>")
		}
		buf.WriteString("</struct>")
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		return encodeValue(buf, val.Elem().Interface())
	default:
		return errors.Errorf("xmlrpc: cannot encode %s", val.Type())
	}
	return nil
}

// Values outside the 32-bit range use the common i8 extension.
func encodeInt(buf *bytes.Buffer, i int64) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		buf.WriteString("<i8>")
		buf.WriteString(strconv.FormatInt(i, 10))
		buf.WriteString("</i8>")
		return
	}
	buf.WriteString("<int>")
	buf.WriteString(strconv.FormatInt(i, 10))
	buf.WriteString("</int>")
}

func encodeRequest(buf *bytes.Buffer, method string, args ...interface{}) error {
	buf.WriteString(xml.Header)
	buf.WriteString("<methodCall><methodName>")
	writeEscaped(buf, method)
	buf.WriteString("</methodName><params>")
	for _, arg := range args {
		buf.WriteString("<param><value>")
		if err := encodeValue(buf, arg); err != nil {
			return errors.Wrapf(err, "encoding argument of %s", method)
		}
		buf.WriteString("</value></param>")
	}
	buf.WriteString("</params></methodCall>")
	return nil
}

func encodeResponse(buf *bytes.Buffer, value interface{}) error {
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><params><param><value>")
	if err := encodeValue(buf, value); err != nil {
		return err
	}
	buf.WriteString("</value></param></params></methodResponse>")
	return nil
}

func encodeFault(buf *bytes.Buffer, fault *Fault) {
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><fault><value>")
	// Both members are plain scalars so encoding cannot fail.
	_ = encodeValue(buf, map[string]interface{}{
		"faultCode":   fault.Code,
		"faultString": fault.Message,
	})
	buf.WriteString("</value></fault></methodResponse>")
}
