package allocine

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/wlynxg/chardet"
	"github.com/wlynxg/chardet/consts"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// toUTF8 returns data as UTF-8. A declared utf-8 charset is trusted, otherwise the
// encoding is detected and Latin-1 content is transcoded.
func toUTF8(data []byte, contentType string) ([]byte, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if strings.EqualFold(params["charset"], "utf-8") {
			return data, nil
		}
	}

	switch chardet.Detect(data).Encoding {
	case consts.ISO88591:
		tr := transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder())
		b, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to transcode ISO-8859-1: %w", err)
		}
		return b, nil
	default:
		return data, nil
	}
}
