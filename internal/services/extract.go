package services

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/flashlearn/flashlearn-backend/internal/apperr"
	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/types"
)

// TextExtractor turns an uploaded file into plain text for chunking.
type TextExtractor interface {
	Extract(fileType string, r io.Reader) (string, error)
}

type textExtractor struct {
	log *logger.Logger
}

func NewTextExtractor(log *logger.Logger) TextExtractor {
	return &textExtractor{log: log.With("service", "TextExtractor")}
}

func (e *textExtractor) Extract(fileType string, r io.Reader) (string, error) {
	switch fileType {
	case types.FileTypePDF:
		return extractPDF(r)
	case types.FileTypeText, types.FileTypeMarkdown:
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", apperr.ErrValidation, fileType)
	}
}

func extractPDF(r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// skip unreadable pages rather than fail the whole document
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
