package builder

import (
	"math"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/savant-model-analyzer/server/internal/analyzer/model"
)

const Target = "is_fulfilled_28d"

var (
	spNames      = []string{"Caremark", "Briova", "Senderra", "Accredo", "Wegmans", "Blue Sky", "Kroger", "United Health"}
	payerPlans   = []string{"Medicare", "Medicaid", "CVS Caremark", "BCBS", "United Health"}
	genders      = []string{"Male", "Female"}
	therapyTypes = []string{"Subcutaneous", "Other"}
)

// Column is one raw dataset column. Exactly one of Numeric or Categorical
// is populated.
type Column struct {
	Name        string
	Numeric     []float64
	Categorical []string
}

func (c Column) IsCategorical() bool { return c.Categorical != nil }

// Dataset is the raw patient fulfilment table before encoding.
type Dataset struct {
	Columns []Column
	Target  model.Labels
}

func (d *Dataset) Len() int { return len(d.Target) }

// Generate draws n synthetic patients. Fulfilment probability rises with
// HCP experience and hub enrolment and falls with plan switches and high
// out-of-pocket cost.
func Generate(n int, rng *rand.Rand) *Dataset {
	choice := func(values []string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = values[rng.IntN(len(values))]
		}
		return out
	}
	intRange := func(lo, hi int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(lo + rng.IntN(hi-lo))
		}
		return out
	}
	uniform := func(lo, hi float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = lo + rng.Float64()*(hi-lo)
		}
		return out
	}
	normal := func(mean, sd float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Max(0, mean+rng.NormFloat64()*sd)
		}
		return out
	}

	d := &Dataset{Columns: []Column{
		{Name: "sp_name", Categorical: choice(spNames)},
		{Name: "payer_plan", Categorical: choice(payerPlans)},
		{Name: "plan_switch_last_year", Numeric: intRange(0, 2)},
		{Name: "out_of_pocket_cost", Numeric: normal(100, 30)},
		{Name: "pa_approval_ratio", Numeric: uniform(0.5, 1.0)},
		{Name: "hcp_biologics_experience", Numeric: intRange(0, 2)},
		{Name: "hcp_subq_experience", Numeric: intRange(0, 2)},
		{Name: "hcp_age", Numeric: intRange(30, 71)},
		{Name: "hcp_gender", Categorical: choice(genders)},
		{Name: "practice_size", Numeric: intRange(1, 51)},
		{Name: "patient_age", Numeric: intRange(18, 91)},
		{Name: "patient_gender", Categorical: choice(genders)},
		{Name: "patient_married", Numeric: intRange(0, 2)},
		{Name: "time_since_diagnosis_months", Numeric: intRange(1, 121)},
		{Name: "enrolled_through_hub", Numeric: intRange(0, 2)},
		{Name: "therapy_type", Categorical: choice(therapyTypes)},
	}}

	col := func(name string) []float64 {
		for _, c := range d.Columns {
			if c.Name == name {
				return c.Numeric
			}
		}
		return nil
	}
	bio, hub, subq := col("hcp_biologics_experience"), col("enrolled_through_hub"), col("hcp_subq_experience")
	switched, oop := col("plan_switch_last_year"), col("out_of_pocket_cost")

	d.Target = make(model.Labels, n)
	for i := range d.Target {
		p := 0.6 + 0.1*bio[i] + 0.07*hub[i] + 0.08*subq[i] - 0.05*switched[i]
		if oop[i] > 200 {
			p -= 0.08
		}
		p = math.Min(1, math.Max(0, p))
		if rng.Float64() < p {
			d.Target[i] = 1
		}
	}
	return d
}

// Encode one-hot encodes categorical columns, dropping the first category
// in sorted order. Numeric columns keep their order and come first, dummy
// columns follow named "{column}_{category}".
func Encode(d *Dataset) model.Frame {
	n := d.Len()
	var (
		names  []string
		values [][]float64
	)
	for _, c := range d.Columns {
		if !c.IsCategorical() {
			names = append(names, c.Name)
			values = append(values, c.Numeric)
		}
	}
	for _, c := range d.Columns {
		if !c.IsCategorical() {
			continue
		}
		cats := slices.Clone(c.Categorical)
		slices.Sort(cats)
		cats = slices.Compact(cats)
		for _, cat := range cats[1:] {
			col := make([]float64, n)
			for i, v := range c.Categorical {
				if v == cat {
					col[i] = 1
				}
			}
			names = append(names, c.Name+"_"+cat)
			values = append(values, col)
		}
	}

	f := model.Frame{Columns: names, Rows: make([][]float64, n)}
	for i := range f.Rows {
		row := make([]float64, len(values))
		for j := range values {
			row[j] = values[j][i]
		}
		f.Rows[i] = row
	}
	return f
}

// Split shuffles rows and holds out testSize of them, at least one.
func Split(x model.Frame, y model.Labels, testSize float64, rng *rand.Rand) (xTrain, xTest model.Frame, yTrain, yTest model.Labels) {
	perm := rng.Perm(len(x.Rows))
	nTest := max(1, int(math.Ceil(testSize*float64(len(perm))-1e-9)))

	xTrain.Columns, xTest.Columns = x.Columns, x.Columns
	for k, i := range perm {
		if k < nTest {
			xTest.Rows = append(xTest.Rows, x.Rows[i])
			yTest = append(yTest, y[i])
			continue
		}
		xTrain.Rows = append(xTrain.Rows, x.Rows[i])
		yTrain = append(yTrain, y[i])
	}
	return
}

func (d *Dataset) String() string {
	return "dataset(" + strconv.Itoa(d.Len()) + " rows, " + strconv.Itoa(len(d.Columns)) + " columns)"
}
