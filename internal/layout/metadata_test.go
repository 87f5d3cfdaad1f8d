package layout

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

const metadataCSV = `Plate metadata,,
Group Name,Well ID,Notes
ATP high,,
,A1,
,a2,
,A20,bad id
Ionomycin,,
,B1,
,B2,
`

func TestApplyMetadata_CSV(t *testing.T) {
	rows, err := ReadMetadataCSV(strings.NewReader(metadataCSV))
	require.NoError(t, err)

	res, err := ApplyMetadata(domain.NewPlateLayout(), rows)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Assigned)
	assert.Equal(t, []string{"A20"}, res.Skipped)
	assert.Equal(t, []string{"ATP high", "Ionomycin"}, res.Groups)

	a2, _ := res.Layout.Lookup("A2")
	assert.Equal(t, "ATP high", a2.Label)
	b2, _ := res.Layout.Lookup("B2")
	assert.Equal(t, "Ionomycin", b2.Label)
}

func TestApplyMetadata_NoHeader(t *testing.T) {
	_, err := ApplyMetadata(domain.NewPlateLayout(), [][]string{{"name", "well"}, {"x", "A1"}})
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeParsing))
}

func TestApplyMetadata_OptionalColumns(t *testing.T) {
	rows := [][]string{
		{"GROUP_NAME", "WELL_ID", "Concentration", "Sample"},
		{"ATP", "", "", ""},
		{"", "C3", "10 µM", "S4"},
	}
	res, err := ApplyMetadata(domain.NewPlateLayout(), rows)
	require.NoError(t, err)

	w, _ := res.Layout.Lookup("C3")
	assert.Equal(t, "ATP", w.Label)
	assert.Equal(t, "10 µM", w.Concentration)
	assert.Equal(t, "S4", w.SampleID)
}

func TestImporter_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Group Name", "Well ID"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Carbachol"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"", "H12"}))

	path := filepath.Join(t.TempDir(), "meta.xlsx")
	require.NoError(t, f.SaveAs(path))

	res, err := NewImporter(nil).ImportFile(domain.NewPlateLayout(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)
	w, _ := res.Layout.Lookup("H12")
	assert.Equal(t, "Carbachol", w.Label)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	res, err = NewImporter(nil).Import(domain.NewPlateLayout(), bytes.NewReader(buf.Bytes()), "upload.xlsx", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)
}
