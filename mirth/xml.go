package mirth

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Time handles Mirth's epoch-millisecond timestamps. The server emits them
// either as flat character data:
//
//	<dateTime>1643719194101</dateTime>
//
// or wrapped in a java.util.Calendar-style element:
//
//	<receivedDate>
//	  <time>1643708252777</time>
//	  <timezone>Europe/London</timezone>
//	</receivedDate>
//
// Both decode to a UTC time.Time. The timezone element is ignored since the
// epoch value is already absolute.
type Time struct {
	time.Time
}

// UnmarshalXML implements xml.Unmarshaler
func (t *Time) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Chardata string `xml:",chardata"`
		Time     string `xml:"time"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	value := strings.TrimSpace(raw.Time)
	if value == "" {
		value = strings.TrimSpace(raw.Chardata)
	}
	if value == "" {
		return nil
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", value, err)
	}

	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

// MarshalXML implements xml.Marshaler, emitting the flat epoch-millisecond form.
func (t Time) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if t.IsZero() {
		return e.EncodeElement("", start)
	}
	return e.EncodeElement(strconv.FormatInt(t.UnixMilli(), 10), start)
}

// EntryMap handles Mirth's XML map encoding, used by metaDataMap, sourceMap
// and event attributes:
//
//	<entry>
//	  <string>key</string>
//	  <string>value</string>
//	</entry>
//
// The first child of an entry is the key, which must be a string. The second
// child may be any XML type and is read as its text content. Entries with a
// lone key decode to an empty value.
type EntryMap map[string]string

// UnmarshalXML implements xml.Unmarshaler
func (m *EntryMap) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	out := make(EntryMap)
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "entry" {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			key, value, err := decodeMapEntry(d)
			if err != nil {
				return fmt.Errorf("decode %s entry: %w", start.Name.Local, err)
			}
			out[key] = value
		case xml.EndElement:
			*m = out
			return nil
		}
	}
}

// decodeMapEntry reads the children of an <entry> element. Mirth map entries
// carry one child (a bare key) or two (key plus value of arbitrary type).
func decodeMapEntry(d *xml.Decoder) (key, value string, err error) {
	var fields []string
	for {
		tok, err := d.Token()
		if err != nil {
			return "", "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			var text struct {
				Chardata string `xml:",chardata"`
			}
			if err := d.DecodeElement(&text, &el); err != nil {
				return "", "", err
			}
			fields = append(fields, strings.TrimSpace(text.Chardata))
		case xml.EndElement:
			switch len(fields) {
			case 1:
				return fields[0], "", nil
			case 2:
				return fields[0], fields[1], nil
			default:
				return "", "", fmt.Errorf("entry has %d children, want 1 or 2", len(fields))
			}
		}
	}
}

// MarshalXML implements xml.Marshaler, emitting string-typed entries with
// keys in sorted order.
func (m EntryMap) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	str := xml.StartElement{Name: xml.Name{Local: "string"}}
	for _, k := range keys {
		entry := xml.StartElement{Name: xml.Name{Local: "entry"}}
		if err := e.EncodeToken(entry); err != nil {
			return err
		}
		if err := e.EncodeElement(k, str); err != nil {
			return err
		}
		if err := e.EncodeElement(m[k], str); err != nil {
			return err
		}
		if err := e.EncodeToken(entry.End()); err != nil {
			return err
		}
	}

	return e.EncodeToken(start.End())
}

// ConnectorMessageMap handles the connectorMessages element, a map keyed by
// connector metadata ID:
//
//	<connectorMessages class="linked-hash-map">
//	  <entry>
//	    <int>0</int>
//	    <connectorMessage>...</connectorMessage>
//	  </entry>
//	</connectorMessages>
//
// Metadata ID 0 is always the source connector, higher IDs are destinations.
type ConnectorMessageMap map[int]ConnectorMessage

// UnmarshalXML implements xml.Unmarshaler
func (m *ConnectorMessageMap) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	out := make(ConnectorMessageMap)
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "entry" {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			var entry struct {
				MetaDataID int              `xml:"int"`
				Connector  ConnectorMessage `xml:"connectorMessage"`
			}
			if err := d.DecodeElement(&entry, &el); err != nil {
				return fmt.Errorf("decode connector message entry: %w", err)
			}
			out[entry.MetaDataID] = entry.Connector
		case xml.EndElement:
			*m = out
			return nil
		}
	}
}

// decodeList decodes the direct children named local out of a <list>
// envelope. An empty <list/> yields an empty slice.
func decodeList[T any](body []byte, local string) ([]T, error) {
	d := xml.NewDecoder(bytes.NewReader(body))
	var out []T
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s list: %w", local, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != local {
			continue
		}
		var item T
		if err := d.DecodeElement(&item, &start); err != nil {
			return nil, fmt.Errorf("decode %s: %w", local, err)
		}
		out = append(out, item)
	}
}

// decodeLong parses the bare <long> payload Mirth returns when a message is
// accepted, carrying the new message ID.
func decodeLong(body []byte) (int64, error) {
	var payload struct {
		XMLName xml.Name `xml:"long"`
		Value   string   `xml:",chardata"`
	}
	if err := xml.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode message id response: %w", err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(payload.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse message id %q: %w", payload.Value, err)
	}
	return id, nil
}
