package qr

import (
	"bytes"
	"image/png"
	"testing"

	"careplus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBooking() models.OpdBooking {
	return models.OpdBooking{ID: "b-1", SessionID: "s-1", BookingNumber: 7, PatientEmail: "p@x.com"}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	g := NewGenerator("secret")

	token, err := g.Encrypt(testBooking())
	require.NoError(t, err)

	payload, err := g.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "b-1", payload.BookingID)
	assert.Equal(t, 7, payload.BookingNumber)
}

func TestDecryptRejectsOtherSecret(t *testing.T) {
	token, err := NewGenerator("secret").Encrypt(testBooking())
	require.NoError(t, err)

	_, err = NewGenerator("other").Decrypt(token)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = NewGenerator("secret").Decrypt("not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTicketPNGIsImage(t *testing.T) {
	img, err := NewGenerator("secret").TicketPNG(testBooking())
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
}
