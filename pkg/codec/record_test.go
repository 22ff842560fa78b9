package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
)

const (
	testMessage  = "This is where your secret message will be!"
	testChecksum = uint32(2882656334)
)

// wireRecord builds a serialized record by hand, independent of Serialize
func wireRecord(length uint32, tag string, payload []byte, crc uint32) []byte {
	buf := make([]byte, 0, 12+len(payload))
	buf = binary.BigEndian.AppendUint32(buf, length)
	buf = append(buf, tag...)
	buf = append(buf, payload...)
	buf = binary.BigEndian.AppendUint32(buf, crc)
	return buf
}

func testingRecord(t *testing.T) *Record {
	t.Helper()
	record, err := ParseRecord(wireRecord(42, "RuSt", []byte(testMessage), testChecksum))
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	return record
}

func TestNewRecord(t *testing.T) {
	tag := MustParseTag("RuSt")
	record := NewRecord(tag, []byte(testMessage))

	if record.Length() != 42 {
		t.Errorf("Length mismatch: got %d, want 42", record.Length())
	}
	if record.Checksum() != testChecksum {
		t.Errorf("Checksum mismatch: got %d, want %d", record.Checksum(), testChecksum)
	}
	if !record.Tag().Equal(tag) {
		t.Errorf("Tag mismatch: got %s, want %s", record.Tag(), tag)
	}
	if !bytes.Equal(record.Payload(), []byte(testMessage)) {
		t.Errorf("Payload mismatch: got %q", record.Payload())
	}
}

func TestNewRecord_CopiesPayload(t *testing.T) {
	payload := []byte("mutable")
	record := NewRecord(MustParseTag("RuSt"), payload)
	checksum := record.Checksum()

	payload[0] = 'X'

	if string(record.Payload()) != "mutable" {
		t.Errorf("Record payload changed with caller buffer: %q", record.Payload())
	}
	if Checksum(record.Tag(), record.Payload()) != checksum {
		t.Error("Record checksum no longer matches its payload")
	}
}

func TestRecord_ChecksumMatchesIEEE(t *testing.T) {
	testCases := []struct {
		name    string
		tag     string
		payload []byte
	}{
		{name: "empty payload", tag: "IEND", payload: nil},
		{name: "text", tag: "tEXt", payload: []byte("Comment\x00hello")},
		{name: "binary", tag: "RuSt", payload: []byte{0x00, 0xFF, 0x10, 0x80}},
		{name: "large", tag: "IDAT", payload: bytes.Repeat([]byte{0xAB}, 64*1024)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record := NewRecord(MustParseTag(tc.tag), tc.payload)
			want := crc32.ChecksumIEEE(append([]byte(tc.tag), tc.payload...))
			if record.Checksum() != want {
				t.Errorf("Checksum mismatch: got %d, want %d", record.Checksum(), want)
			}
		})
	}
}

func TestParseRecord_Valid(t *testing.T) {
	record := testingRecord(t)

	if record.Length() != 42 {
		t.Errorf("Length mismatch: got %d, want 42", record.Length())
	}
	if record.Tag().String() != "RuSt" {
		t.Errorf("Tag mismatch: got %s, want RuSt", record.Tag())
	}
	text, err := record.PayloadText()
	if err != nil {
		t.Fatalf("PayloadText failed: %v", err)
	}
	if text != testMessage {
		t.Errorf("PayloadText mismatch: got %q, want %q", text, testMessage)
	}
	if record.Checksum() != testChecksum {
		t.Errorf("Checksum mismatch: got %d, want %d", record.Checksum(), testChecksum)
	}
}

func TestRecord_SerializeParseRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		tag     string
		payload []byte
	}{
		{name: "secret message", tag: "RuSt", payload: []byte(testMessage)},
		{name: "empty payload", tag: "IEND", payload: []byte{}},
		{name: "binary data", tag: "prVt", payload: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}},
		{name: "reserved bit set", tag: "Rust", payload: []byte("still parseable")},
		{name: "large payload", tag: "IDAT", payload: bytes.Repeat([]byte("v"), 10240)},
		{name: "unicode data", tag: "iTXt", payload: []byte("🎯 unicode value with émojis")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			original := NewRecord(MustParseTag(tc.tag), tc.payload)

			encoded := original.Serialize()
			if len(encoded) != 12+len(tc.payload) {
				t.Fatalf("Encoded size mismatch: got %d, want %d", len(encoded), 12+len(tc.payload))
			}

			decoded, err := ParseRecord(encoded)
			if err != nil {
				t.Fatalf("ParseRecord failed: %v", err)
			}

			if !decoded.Equal(original) {
				t.Errorf("Round trip mismatch: got %v, want %v", decoded, original)
			}
			if !bytes.Equal(decoded.Payload(), tc.payload) {
				t.Errorf("Payload mismatch: got %v, want %v", decoded.Payload(), tc.payload)
			}
		})
	}
}

func TestRecord_SerializeLayout(t *testing.T) {
	record := NewRecord(MustParseTag("RuSt"), []byte(testMessage))
	want := wireRecord(42, "RuSt", []byte(testMessage), testChecksum)

	if got := record.Serialize(); !bytes.Equal(got, want) {
		t.Errorf("Serialize mismatch:\n got %x\nwant %x", got, want)
	}

	prefix := []byte("prefix")
	got := record.AppendTo(prefix)
	if !bytes.Equal(got[:len(prefix)], prefix) || !bytes.Equal(got[len(prefix):], want) {
		t.Errorf("AppendTo mismatch: got %x", got)
	}
}

func TestParseRecord_CRCTampering(t *testing.T) {
	encoded := NewRecord(MustParseTag("RuSt"), []byte(testMessage)).Serialize()
	trailer := len(encoded) - 4

	for bit := 0; bit < 32; bit++ {
		corrupted := append([]byte(nil), encoded...)
		corrupted[trailer+bit/8] ^= 1 << (bit % 8)

		_, err := ParseRecord(corrupted)
		if !errors.Is(err, ErrCrcMismatch) {
			t.Errorf("bit %d: expected ErrCrcMismatch, got %v", bit, err)
		}
	}
}

func TestParseRecord_WrongDeclaredCRC(t *testing.T) {
	data := wireRecord(42, "RuSt", []byte(testMessage), testChecksum-1)

	_, err := ParseRecord(data)
	if !errors.Is(err, ErrCrcMismatch) {
		t.Fatalf("expected ErrCrcMismatch, got %v", err)
	}
	if KindOf(err) != KindCrcMismatch {
		t.Errorf("KindOf mismatch: got %v", KindOf(err))
	}
}

func TestParseRecord_PayloadTampering(t *testing.T) {
	encoded := NewRecord(MustParseTag("RuSt"), []byte(testMessage)).Serialize()
	encoded[HeaderSize] ^= 0xFF

	if _, err := ParseRecord(encoded); !errors.Is(err, ErrCrcMismatch) {
		t.Errorf("expected ErrCrcMismatch, got %v", err)
	}
}

func TestParseRecord_LengthTampering(t *testing.T) {
	encoded := NewRecord(MustParseTag("RuSt"), []byte(testMessage)).Serialize()

	for bit := 0; bit < 32; bit++ {
		corrupted := append([]byte(nil), encoded...)
		corrupted[bit/8] ^= 1 << (bit % 8)

		_, err := ParseRecord(corrupted)
		if !errors.Is(err, ErrTruncated) && !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("bit %d: expected ErrTruncated or ErrLengthMismatch, got %v", bit, err)
		}
	}
}

func TestParseRecord_MalformedData(t *testing.T) {
	payload := []byte("hello")
	crc := crc32.ChecksumIEEE(append([]byte("RuSt"), payload...))

	testCases := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "empty data",
			data:    []byte{},
			wantErr: ErrTruncated,
		},
		{
			name:    "too short for header",
			data:    []byte{0x00, 0x00, 0x00},
			wantErr: ErrTruncated,
		},
		{
			name:    "one byte short of minimum",
			data:    make([]byte, 11),
			wantErr: ErrTruncated,
		},
		{
			name:    "declared length exceeds data",
			data:    wireRecord(100, "RuSt", payload, crc),
			wantErr: ErrTruncated,
		},
		{
			name:    "declared length shorter than data",
			data:    wireRecord(2, "RuSt", payload, crc),
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "trailing garbage",
			data:    append(wireRecord(5, "RuSt", payload, crc), 0x00),
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "digit in tag",
			data:    wireRecord(5, "Ru1t", payload, crc),
			wantErr: ErrInvalidTag,
		},
		{
			name:    "zero tag",
			data:    make([]byte, 12),
			wantErr: ErrInvalidTag,
		},
		{
			name:    "bad tag checked before length",
			data:    wireRecord(100, "Ru1t", payload, crc),
			wantErr: ErrInvalidTag,
		},
		{
			name:    "max declared length",
			data:    wireRecord(0xFFFFFFFF, "RuSt", payload, crc),
			wantErr: ErrTruncated,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := ParseRecord(tc.data)
			if err == nil {
				t.Fatalf("Expected parse to fail, got %v", record)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Error mismatch: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseRecord_DoesNotAliasInput(t *testing.T) {
	encoded := NewRecord(MustParseTag("RuSt"), []byte("hello")).Serialize()

	record, err := ParseRecord(encoded)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}

	encoded[HeaderSize] = 'J'
	if string(record.Payload()) != "hello" {
		t.Errorf("Record payload aliases input buffer: %q", record.Payload())
	}
}

func TestRecord_PayloadText(t *testing.T) {
	record := NewRecord(MustParseTag("RuSt"), []byte{0xC3, 0x28})

	if _, err := record.PayloadText(); !errors.Is(err, ErrNotUTF8) {
		t.Errorf("expected ErrNotUTF8, got %v", err)
	}
	if record.String() != "Invalid chunk" {
		t.Errorf("String mismatch: got %q", record.String())
	}

	record = NewRecord(MustParseTag("RuSt"), []byte(testMessage))
	if record.String() != testMessage {
		t.Errorf("String mismatch: got %q", record.String())
	}
}

func TestRecord_Size(t *testing.T) {
	testCases := []struct {
		name         string
		payload      []byte
		expectedSize int
	}{
		{
			name:         "empty payload",
			payload:      []byte(""),
			expectedSize: 12, // Header and trailer only
		},
		{
			name:         "small payload",
			payload:      []byte("value"),
			expectedSize: 12 + 5,
		},
		{
			name:         "large data",
			payload:      bytes.Repeat([]byte("v"), 2000),
			expectedSize: 12 + 2000,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record := NewRecord(MustParseTag("RuSt"), tc.payload)
			if record.Size() != tc.expectedSize {
				t.Errorf("Size mismatch: got %d, want %d", record.Size(), tc.expectedSize)
			}
			if len(record.Serialize()) != tc.expectedSize {
				t.Errorf("Serialized size mismatch: got %d, want %d", len(record.Serialize()), tc.expectedSize)
			}
		})
	}
}

func TestRecord_Equal(t *testing.T) {
	a := NewRecord(MustParseTag("RuSt"), []byte("one"))
	b := NewRecord(MustParseTag("RuSt"), []byte("one"))
	c := NewRecord(MustParseTag("RuSt"), []byte("two"))
	d := NewRecord(MustParseTag("ruSt"), []byte("one"))

	if !a.Equal(b) {
		t.Error("Expected identical records to be equal")
	}
	if a.Equal(c) || a.Equal(d) {
		t.Error("Expected differing records to be unequal")
	}
	if a.Equal(nil) {
		t.Error("Expected record to differ from nil")
	}
}

func TestRecord_PermissiveTagSurvivesSerialize(t *testing.T) {
	// Records built from raw tags still serialize; parsing enforces letters.
	record := NewRecord(TagFromBytes([4]byte{'R', 'u', '1', 't'}), []byte("x"))

	encoded := record.Serialize()
	if !bytes.Equal(encoded[4:8], []byte("Ru1t")) {
		t.Errorf("Tag bytes not written verbatim: %q", encoded[4:8])
	}
	if _, err := ParseRecord(encoded); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("expected ErrInvalidTag, got %v", err)
	}
}
