package layout

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	layout, err := ApplyLabel(domain.NewPlateLayout(), []string{"E5", "F6"}, LabelSpec{Label: "ATP", Concentration: "3", SampleID: "S2"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "layouts", "plate.json")
	require.NoError(t, Save(path, layout))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, layout.Wells(), loaded.Wells())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("not json"))
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeParsing))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeStorage))
}
