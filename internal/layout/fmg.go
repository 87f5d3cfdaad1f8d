package layout

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// Fixed groups present in every exported plate.
var fmgDefaultGroups = []string{"NO_GROUP", "Positive Controls", "Negative Controls", "BF Controls"}

const firstUserGroup = 4

var numericPattern = regexp.MustCompile(`[\d.]+`)

// ColorToDecimal converts "#rrggbb" to its decimal value. Invalid colors map to 0.
func ColorToDecimal(hex string) int64 {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 64)
	if err != nil {
		return 0
	}
	return v
}

// ConcentrationValue extracts the first number in a concentration string
// such as "10 µM". It returns 0 when there is none.
func ConcentrationValue(conc string) float64 {
	m := numericPattern.FindString(conc)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatConcentration(conc string) string {
	if conc == "" {
		return "0"
	}
	s := strconv.FormatFloat(ConcentrationValue(conc), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

type fmgGroup struct {
	id            int
	name          string
	concentration string
	color         int64
	kind          int
}

func (g fmgGroup) lines() []string {
	return []string{
		fmt.Sprintf("[CFLIPRGroup%d]", g.id),
		"Object=CFLIPRGroup",
		fmt.Sprintf("GroupID=%d", g.id),
		"Concentration=" + g.concentration,
		"ConcentrationUnits=µM",
		fmt.Sprintf("Color=%d", g.color),
		fmt.Sprintf("Type=%d", g.kind),
		"Operation=0",
		"StartValue=0",
		"IncrementValue=0.1",
		"Direction=0",
		"Replicate=2",
		"ReplicateCount=1",
		"CurrentIndex=1",
		"GroupName=" + g.name,
		"Notes=",
		"ExcludeFromStatisticChart=FALSE",
	}
}

// ExportFMG renders the plate in the instrument's .fmg group format. Each
// unique (label, concentration) pair becomes a user group numbered from 4,
// colored after its first well.
func ExportFMG(layout *domain.PlateLayout) string {
	type key struct{ label, conc string }
	ids := make(map[key]int)
	var users []fmgGroup

	plate := []string{"[CFLIPRPlateData]", "Object=CFLIPRPlateData", fmt.Sprintf("TotalWells=%d", domain.PlateSize)}
	for _, w := range layout.Wells() {
		id := 0
		if w.Label != "" || w.Concentration != "" {
			k := key{w.Label, w.Concentration}
			var ok bool
			if id, ok = ids[k]; !ok {
				id = firstUserGroup + len(users)
				ids[k] = id
				users = append(users, fmgGroup{
					id:            id,
					name:          w.Label,
					concentration: formatConcentration(w.Concentration),
					color:         ColorToDecimal(w.Color),
					kind:          2,
				})
			}
		}
		plate = append(plate, fmt.Sprintf("Row%dCol%d=%d", w.Row()+1, w.Column()+1, id))
	}

	groups := []string{"[CFLIPRGroupArray]", fmt.Sprintf("Size=%d", len(users)+len(fmgDefaultGroups))}
	for id, name := range fmgDefaultGroups {
		kind := 0
		if id > 0 {
			kind = 1
		}
		groups = append(groups, fmgGroup{id: id, name: name, concentration: "10", color: 16777215, kind: kind}.lines()...)
	}
	for _, g := range users {
		groups = append(groups, g.lines()...)
	}

	return strings.Join(append(plate, groups...), "\n")
}

// WriteFMG writes ExportFMG output to w.
func WriteFMG(w io.Writer, layout *domain.PlateLayout) error {
	_, err := io.WriteString(w, ExportFMG(layout))
	return err
}
