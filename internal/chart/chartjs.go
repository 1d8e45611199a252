package chart

import "github.com/shopspring/decimal"

const (
	defaultSetLabel = "(no label)"
	defaultSetType  = "line"
)

// Chart is the top-level object consumed by Chart.js.
type Chart[D any] struct {
	Count    int      `json:"count,omitempty"`
	Labels   []string `json:"labels"`
	Datasets []D      `json:"datasets"`
}

// PieDataset carries one color (and optionally one currency symbol) per slice.
type PieDataset struct {
	Data            []decimal.Decimal `json:"data"`
	BackgroundColor []string          `json:"backgroundColor"`
	CurrencySymbol  []string          `json:"currency_symbol,omitempty"`
}

// SetDataset is one line or bar series of a multi-set chart.
type SetDataset struct {
	Label           string            `json:"label"`
	Type            string            `json:"type,omitempty"`
	Data            []decimal.Decimal `json:"data"`
	YAxisID         string            `json:"yAxisID,omitempty"`
	Fill            *bool             `json:"fill,omitempty"`
	CurrencySymbol  string            `json:"currency_symbol,omitempty"`
	BackgroundColor string            `json:"backgroundColor,omitempty"`
}

// Point is a labeled value inside a Set.
type Point struct {
	Label string
	Value decimal.Decimal
}

// Set describes one dataset of MultiSet. Empty Label and Type get defaults.
type Set struct {
	Label           string
	Type            string
	YAxisID         string
	Fill            *bool
	CurrencySymbol  string
	BackgroundColor string
	Entries         []Point
}

// PieChart buckets series and renders it as a single pie dataset.
func PieChart(series []Entry, cfg Config) Chart[PieDataset] {
	return pie(Bucket(series, cfg))
}

// MultiCurrencyPieChart is PieChart with a currency_symbol per slice.
func MultiCurrencyPieChart(series []Entry, cfg Config) Chart[PieDataset] {
	return pie(BucketWithCurrency(series, cfg))
}

func pie(out Output) Chart[PieDataset] {
	return Chart[PieDataset]{
		Labels: out.Labels,
		Datasets: []PieDataset{{
			Data:            out.Values,
			BackgroundColor: out.BackgroundColors,
			CurrencySymbol:  out.CurrencySymbols,
		}},
	}
}

// SingleSet renders a single unlabeled-axis dataset.
func SingleSet(setLabel string, entries []Point) Chart[SetDataset] {
	labels, data := split(entries)
	return Chart[SetDataset]{
		Count:    1,
		Labels:   labels,
		Datasets: []SetDataset{{Label: setLabel, Data: data}},
	}
}

// MultiSet renders several datasets sharing the labels of the first set.
func MultiSet(sets []Set) Chart[SetDataset] {
	if len(sets) == 0 {
		return Chart[SetDataset]{Labels: []string{}, Datasets: []SetDataset{}}
	}
	labels, _ := split(sets[0].Entries)

	chart := Chart[SetDataset]{
		Count:    len(sets),
		Labels:   labels,
		Datasets: make([]SetDataset, 0, len(sets)),
	}
	for _, s := range sets {
		_, data := split(s.Entries)
		ds := SetDataset{
			Label:           s.Label,
			Type:            s.Type,
			Data:            data,
			YAxisID:         s.YAxisID,
			Fill:            s.Fill,
			CurrencySymbol:  s.CurrencySymbol,
			BackgroundColor: s.BackgroundColor,
		}
		if ds.Label == "" {
			ds.Label = defaultSetLabel
		}
		if ds.Type == "" {
			ds.Type = defaultSetType
		}
		chart.Datasets = append(chart.Datasets, ds)
	}
	return chart
}

func split(points []Point) ([]string, []decimal.Decimal) {
	labels := make([]string, 0, len(points))
	data := make([]decimal.Decimal, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Label)
		data = append(data, p.Value)
	}
	return labels, data
}
