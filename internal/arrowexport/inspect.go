package arrowexport

import (
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/23skdu/longbow-tensorsim/internal/precision"
)

// Stream kinds recognised by Summarize.
const (
	KindResult = "result"
	KindStages = "stages"
)

// TensorSummary counts the cells of one tensor in a result stream.
// NotBinary16 counts FP16 cells whose stored bits do not decode back to
// the cell value, i.e. values the float32-exponent cast kept but a real
// binary16 register could not hold.
type TensorSummary struct {
	Name        string
	Cells       int
	FP16Cells   int
	NotBinary16 int
}

// StreamSummary describes a stream read back with ReadStream.
type StreamSummary struct {
	Kind    string
	Rows    int64
	Meta    map[string]float64
	Tensors []TensorSummary
	Stages  []string
}

func (s StreamSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s stream, %d rows\n", s.Kind, s.Rows)
	for _, k := range []string{MetaSize, MetaMaxAbsError, MetaFlops, MetaCycles, MetaSpeedup} {
		if v, ok := s.Meta[k]; ok {
			fmt.Fprintf(&b, "  %s = %g\n", k, v)
		}
	}
	for _, t := range s.Tensors {
		fmt.Fprintf(&b, "  %-3s %d cells", t.Name, t.Cells)
		if t.FP16Cells > 0 {
			fmt.Fprintf(&b, ", %d FP16, %d outside binary16", t.FP16Cells, t.NotBinary16)
		}
		b.WriteByte('\n')
	}
	if len(s.Stages) > 0 {
		fmt.Fprintf(&b, "  stages: %s\n", strings.Join(s.Stages, " → "))
	}
	return b.String()
}

// Summarize inspects records written by ResultRecord or StagesRecord.
// All records must share one schema.
func Summarize(recs []arrow.Record) (StreamSummary, error) {
	if len(recs) == 0 {
		return StreamSummary{}, fmt.Errorf("no records to summarize")
	}
	schema := recs[0].Schema()
	for i, rec := range recs[1:] {
		if !rec.Schema().Equal(schema) {
			return StreamSummary{}, fmt.Errorf("record %d schema differs from record 0", i+1)
		}
	}

	switch {
	case schema.Equal(StageSchema):
		return summarizeStages(recs), nil
	case schema.HasMetadata():
		return summarizeResult(recs)
	default:
		return StreamSummary{}, fmt.Errorf("unrecognised schema: %s", schema)
	}
}

func summarizeResult(recs []arrow.Record) (StreamSummary, error) {
	s := StreamSummary{Kind: KindResult, Meta: make(map[string]float64)}
	schema := recs[0].Schema()
	for _, k := range []string{MetaSize, MetaMaxAbsError, MetaFlops, MetaCycles, MetaSpeedup} {
		v, err := MetaFloat(schema, k)
		if err != nil {
			return StreamSummary{}, err
		}
		s.Meta[k] = v
	}

	index := make(map[string]int)
	for _, rec := range recs {
		s.Rows += rec.NumRows()
		names, ok1 := rec.Column(0).(*array.String)
		vals, ok2 := rec.Column(3).(*array.Float64)
		bits, ok3 := rec.Column(4).(*array.Uint16)
		if !ok1 || !ok2 || !ok3 {
			return StreamSummary{}, fmt.Errorf("unexpected column types in result record")
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			name := names.Value(i)
			j, seen := index[name]
			if !seen {
				j = len(s.Tensors)
				index[name] = j
				s.Tensors = append(s.Tensors, TensorSummary{Name: name})
			}
			t := &s.Tensors[j]
			t.Cells++
			if bits.IsNull(i) {
				continue
			}
			t.FP16Cells++
			h, v := precision.FromHalfBits(bits.Value(i)), vals.Value(i)
			if h != v && !(math.IsNaN(h) && math.IsNaN(v)) {
				t.NotBinary16++
			}
		}
	}
	return s, nil
}

func summarizeStages(recs []arrow.Record) StreamSummary {
	s := StreamSummary{Kind: KindStages}
	for _, rec := range recs {
		s.Rows += rec.NumRows()
		stages := rec.Column(0).(*array.String)
		for i := 0; i < stages.Len(); i++ {
			s.Stages = append(s.Stages, stages.Value(i))
		}
	}
	return s
}
