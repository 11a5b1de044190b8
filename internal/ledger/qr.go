package ledger

import (
    "github.com/skip2/go-qrcode"
)

// QRSize is the edge length of rendered QR images in pixels.
const QRSize = 256

// RenderQR encodes content as a PNG QR code. The ticket id is the only
// payload, so validating a ticket at the door is a lookup.
func RenderQR(content string) ([]byte, error) {
    return qrcode.Encode(content, qrcode.Medium, QRSize)
}

// QRKey is the media store key of a ticket's QR image.
func QRKey(ticketID string) string { return ticketID + ".png" }
