// Package fingerprint derives stable device identifiers from browser signals.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/mssola/useragent"

	"mailguard/internal/fingerprint/models"
	id "mailguard/pkg/domain"
)

// ComputeHash returns the 32 hex char device hash for d. Fonts are sorted first
// so the browser's enumeration order does not change the hash.
func ComputeHash(d models.Descriptor) id.FingerprintHash {
	fonts := slices.Clone(d.Fonts)
	slices.Sort(fonts)

	parts := []string{
		d.UserAgent,
		d.Screen,
		d.Timezone,
		d.CanvasHash,
		d.WebGLHash,
		strings.Join(fonts, ","),
		strconv.FormatBool(d.TouchSupport),
		strconv.Itoa(d.HardwareCores),
		strconv.FormatFloat(d.DeviceMemoryGB, 'f', -1, 64),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return id.FingerprintHash(hex.EncodeToString(sum[:])[:id.FingerprintHashLength])
}

// ParseDeviceInfo summarizes a User-Agent header for validation logs.
func ParseDeviceInfo(userAgent string) models.DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return models.DeviceInfo{}
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	return models.DeviceInfo{
		Browser:        browser,
		BrowserVersion: version,
		OS:             ua.OS(),
		Platform:       ua.Platform(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}
