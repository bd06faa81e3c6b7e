package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_RoundTrip(t *testing.T) {
	payload, err := EncodeMessage(Header{Type: "file", Name: "a.bin", Size: 3})
	require.NoError(t, err)

	h, err := DecodeHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, "file", h.Type)
	assert.Equal(t, "a.bin", h.Name)
	assert.Equal(t, uint64(3), h.Size)
	assert.Nil(t, h.Compression)
}

func TestDecodeHeader_RejectsUnknownType(t *testing.T) {
	payload := []byte(`{"type":"tarball","name":"dir.tar","size":10}`)
	_, err := DecodeHeader(payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownHeaderType))
}

func TestDecodeHeader_RejectsCompression(t *testing.T) {
	payload := []byte(`{"type":"file","name":"a.bin","size":3,"compression":"gzip"}`)
	_, err := DecodeHeader(payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompressionUnsupported))
}

func TestDecodeHeader_RejectsUnknownFields(t *testing.T) {
	payload := []byte(`{"type":"file","name":"a.bin","size":3,"mode":"0644"}`)
	_, err := DecodeHeader(payload)
	assert.Error(t, err)
}

func TestDecodeHeader_RejectsNegativeSize(t *testing.T) {
	payload := []byte(`{"type":"file","name":"a.bin","size":-1}`)
	_, err := DecodeHeader(payload)
	assert.Error(t, err)
}

func TestDecodeHeader_RejectsBadNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		payload, err := EncodeMessage(Header{Type: "file", Name: name, Size: 1})
		require.NoError(t, err)
		_, err = DecodeHeader(payload)
		assert.True(t, errors.Is(err, ErrInvalidFilename), "name %q", name)
	}
}

func TestAck_RoundTrip(t *testing.T) {
	digest := "2f2acea4c7b8b90bb8dad42200363d2b5d9e7b51a9a2b26d00ccbd29bd6b14ec"
	payload, err := EncodeMessage(Ack{Ack: "ok", SHA256: digest})
	require.NoError(t, err)

	a, err := DecodeAck(payload)
	require.NoError(t, err)
	assert.Equal(t, AckOK, a.Ack)
	assert.Equal(t, digest, a.SHA256)
}

func TestDecodeAck_RejectsBadDigest(t *testing.T) {
	for _, digest := range []string{
		"",
		"abc",
		"2F2ACEA4C7B8B90BB8DAD42200363D2B5D9E7B51A9A2B26D00CCBD29BD6B14EC", // uppercase
		"zz2acea4c7b8b90bb8dad42200363d2b5d9e7b51a9a2b26d00ccbd29bd6b14ec", // non-hex
	} {
		payload := []byte(`{"ack":"ok","sha256":"` + digest + `"}`)
		_, err := DecodeAck(payload)
		assert.True(t, errors.Is(err, ErrInvalidAck), "digest %q", digest)
	}
}

func TestDone_RoundTrip(t *testing.T) {
	payload, err := EncodeMessage(Done{Done: "done"})
	require.NoError(t, err)

	d, err := DecodeDone(payload)
	require.NoError(t, err)
	assert.Equal(t, DoneDone, d.Done)
}

func TestDecodeDone_RejectsUnexpectedValue(t *testing.T) {
	_, err := DecodeDone([]byte(`{"done":"almost"}`))
	assert.True(t, errors.Is(err, ErrInvalidControl))
}

func TestDecodeDone_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeDone([]byte(`{"done":"done","extra":1}`))
	assert.Error(t, err)
}
