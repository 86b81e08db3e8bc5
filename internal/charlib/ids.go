// internal/charlib/ids.go
package charlib

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"regexp"
	"strconv"
	"strings"
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// NameSlug lowercases name, keeps [a-z0-9-] and caps it at 20 characters.
func NameSlug(name string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(name), "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 20 {
		slug = slug[:20]
	}
	return slug
}

// GenerateUniqueCharacterID builds
// <projectPrefix>-<nameSlug>-<base36 millis>-<random hex>-<counter>.
func (c *Client) GenerateUniqueCharacterID(name, projectID string) string {
	prefix := "nm"
	if projectID != "" {
		prefix = projectID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		for i := range randomBytes {
			randomBytes[i] = byte(mrand.Intn(256))
		}
	}

	counter := c.idCounter.Add(1)
	return fmt.Sprintf("%s-%s-%s-%s-%03d",
		prefix,
		NameSlug(name),
		strconv.FormatInt(c.now().UnixMilli(), 36),
		hex.EncodeToString(randomBytes),
		counter,
	)
}
