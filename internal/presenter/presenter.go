package presenter

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"

	"lanshare/internal/models"
)

// QRImageSize is the edge length of the generated PNG in pixels.
const QRImageSize = 310

// Half-block characters for terminal QR codes
const (
	blackWhite = "▄"
	blackBlack = " "
	whiteBlack = "▀"
	whiteWhite = "█"
)

// NewShareLink builds the immutable share link for address and port.
func NewShareLink(address string, port int) models.ShareLink {
	return models.ShareLink{
		Address: address,
		Port:    port,
		URL:     BuildShareURL(address, port),
	}
}

// WriteQRCode writes a PNG QR code for url to path, replacing any existing file.
func WriteQRCode(url, path string) error {
	if err := qrcode.WriteFile(url, qrcode.Medium, QRImageSize, path); err != nil {
		return fmt.Errorf("write QR code %s: %w", path, err)
	}
	return nil
}

// PrintTerminalQR renders url as a QR code made of half blocks.
func PrintTerminalQR(w io.Writer, url string) {
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:          qrterminal.M,
		Writer:         w,
		HalfBlocks:     true,
		BlackChar:      blackBlack,
		WhiteBlackChar: whiteBlack,
		WhiteChar:      whiteWhite,
		BlackWhiteChar: blackWhite,
		QuietZone:      1,
	})
}

// Banner prints the startup summary.
func Banner(w io.Writer, dir string, link models.ShareLink, qrFile string) {
	title := color.New(color.FgGreen, color.Bold)
	label := color.New(color.FgCyan)

	fmt.Fprintln(w)
	title.Fprintln(w, "File Share Server is running!")
	label.Fprint(w, "Sharing directory: ")
	fmt.Fprintln(w, dir)
	label.Fprint(w, "Access your files at: ")
	fmt.Fprintln(w, link.URL)
	label.Fprint(w, "QR Code generated: ")
	fmt.Fprintln(w, qrFile)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop the server")
}

// Stopped prints the shutdown notice.
func Stopped(w io.Writer) {
	fmt.Fprintln(w)
	color.New(color.FgYellow).Fprintln(w, "Server stopped by user")
}
