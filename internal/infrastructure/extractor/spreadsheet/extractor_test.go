package spreadsheet

import (
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

func TestRecognizeFlattensRows(t *testing.T) {
	f := excelize.NewFile()
	const sheet = "Sheet1"
	_ = f.SetCellValue(sheet, "A1", "Claimant")
	_ = f.SetCellValue(sheet, "B1", "Amount")
	_ = f.SetCellValue(sheet, "A2", "Jane Roe")
	_ = f.SetCellValue(sheet, "B2", 1200)

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	_ = f.Close()

	text, err := NewRecognizer().Recognize(context.Background(), buf.Bytes(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Claimant\tAmount\nJane Roe\t1200" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestRecognizeRejectsNonWorkbook(t *testing.T) {
	_, err := NewRecognizer().Recognize(context.Background(), []byte("not a zip"), "")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
