package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want domain.Category
	}{
		{"report.pdf", domain.CategoryPDF},
		{"REPORT.PDF", domain.CategoryPDF},
		{"dir/contract.docx", domain.CategoryWord},
		{"legacy.doc", domain.CategoryWord},
		{"sales.csv", domain.CategoryTabular},
		{"Book.XLSX", domain.CategoryTabular},
		{"old.xls", domain.CategoryTabular},
		{"notes.txt", domain.CategoryUnsupported},
		{"image.png", domain.CategoryUnsupported},
		{"archive.tar.gz", domain.CategoryUnsupported},
		{"README", domain.CategoryUnsupported},
		{"pdf", domain.CategoryUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.path))
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	got := SupportedExtensions()
	assert.Equal(t, []string{".pdf"}, got[domain.CategoryPDF])
	assert.Equal(t, []string{".doc", ".docx"}, got[domain.CategoryWord])
	assert.Equal(t, []string{".csv", ".xls", ".xlsx"}, got[domain.CategoryTabular])
	for ext := range map[string]bool{".pdf": true, ".docx": true, ".csv": true, ".xlsx": true} {
		assert.NotEqual(t, domain.CategoryUnsupported, Detect("f"+ext))
	}
}
