// Package arrowexport hands simulation results to columnar renderers as
// Arrow record batches and IPC streams.
package arrowexport

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-tensorsim/internal/matrix"
	"github.com/23skdu/longbow-tensorsim/internal/mma"
	"github.com/23skdu/longbow-tensorsim/internal/precision"
)

// Schema metadata keys on result records.
const (
	MetaSize        = "n"
	MetaMaxAbsError = "max_abs_error"
	MetaFlops       = "flops"
	MetaCycles      = "cycles"
	MetaSpeedup     = "speedup"
)

// Tensor names used in the matrix column.
const (
	TensorA         = "A"
	TensorB         = "B"
	TensorC         = "C"
	TensorD         = "D"
	TensorReference = "D32"
)

var cellFields = []arrow.Field{
	{Name: "matrix", Type: arrow.BinaryTypes.String},
	{Name: "row", Type: arrow.PrimitiveTypes.Int32},
	{Name: "col", Type: arrow.PrimitiveTypes.Int32},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	// fp16_bits is null for tensors held in FP32.
	{Name: "fp16_bits", Type: arrow.PrimitiveTypes.Uint16, Nullable: true},
}

// StageSchema is fixed; stage records carry no metadata.
var StageSchema = arrow.NewSchema([]arrow.Field{
	{Name: "stage", Type: arrow.BinaryTypes.String},
	{Name: "label", Type: arrow.BinaryTypes.String},
	{Name: "format", Type: arrow.BinaryTypes.String},
	{Name: "bit_width", Type: arrow.PrimitiveTypes.Int32},
	{Name: "error_risk", Type: arrow.PrimitiveTypes.Float64},
	{Name: "row", Type: arrow.PrimitiveTypes.Int32},
	{Name: "col", Type: arrow.PrimitiveTypes.Int32},
	{Name: "values", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "detail", Type: arrow.BinaryTypes.String},
}, nil)

// ResultSchema returns the long-format cell schema with the run's scalars
// attached as metadata.
func ResultSchema(res *mma.Result) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaSize, MetaMaxAbsError, MetaFlops, MetaCycles, MetaSpeedup},
		[]string{
			strconv.Itoa(res.Output.N()),
			strconv.FormatFloat(res.MaxAbsoluteError, 'g', -1, 64),
			strconv.FormatInt(res.Flops, 10),
			strconv.FormatInt(res.Cycles, 10),
			strconv.FormatFloat(res.Throughput.Speedup, 'g', -1, 64),
		},
	)
	return arrow.NewSchema(cellFields, &md)
}

// ResultRecord flattens every matrix of res into one row per cell, in the
// order A, B, C, D, D32. The caller owns the record and must Release it.
func ResultRecord(mem memory.Allocator, res *mma.Result) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, ResultSchema(res))
	defer b.Release()

	names := b.Field(0).(*array.StringBuilder)
	rows := b.Field(1).(*array.Int32Builder)
	cols := b.Field(2).(*array.Int32Builder)
	vals := b.Field(3).(*array.Float64Builder)
	bits := b.Field(4).(*array.Uint16Builder)

	tensors := []struct {
		name   string
		m      matrix.Matrix
		format precision.Format
	}{
		{TensorA, res.InputA, precision.FP16},
		{TensorB, res.InputB, precision.FP16},
		{TensorC, res.Accumulator, precision.FP32},
		{TensorD, res.Output, precision.FP32},
		{TensorReference, res.ReferenceOutput, precision.FP32},
	}
	for _, t := range tensors {
		n := t.m.N()
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				v := t.m.At(r, c)
				names.Append(t.name)
				rows.Append(int32(r))
				cols.Append(int32(c))
				vals.Append(v)
				if t.format == precision.FP16 {
					bits.Append(precision.ToHalfBits(v))
				} else {
					bits.AppendNull()
				}
			}
		}
	}
	return b.NewRecord()
}

// StagesRecord renders the stage snapshots one row per stage.
func StagesRecord(mem memory.Allocator, snaps []mma.Snapshot) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, StageSchema)
	defer b.Release()

	stage := b.Field(0).(*array.StringBuilder)
	label := b.Field(1).(*array.StringBuilder)
	format := b.Field(2).(*array.StringBuilder)
	width := b.Field(3).(*array.Int32Builder)
	risk := b.Field(4).(*array.Float64Builder)
	rows := b.Field(5).(*array.Int32Builder)
	cols := b.Field(6).(*array.Int32Builder)
	values := b.Field(7).(*array.ListBuilder)
	valueItems := values.ValueBuilder().(*array.Float64Builder)
	detail := b.Field(8).(*array.StringBuilder)

	for _, s := range snaps {
		stage.Append(s.Stage.String())
		label.Append(s.Stage.Label())
		format.Append(s.Format.String())
		width.Append(int32(s.BitWidth()))
		risk.Append(s.Stage.ErrorRisk())
		rows.Append(int32(s.Row))
		cols.Append(int32(s.Col))
		values.Append(true)
		valueItems.AppendValues(s.Values, nil)
		detail.Append(s.Detail)
	}
	return b.NewRecord()
}

// MetaFloat reads a float scalar back out of a result schema.
func MetaFloat(s *arrow.Schema, key string) (float64, error) {
	md := s.Metadata()
	i := md.FindKey(key)
	if i < 0 {
		return 0, fmt.Errorf("metadata key %q not found", key)
	}
	return strconv.ParseFloat(md.Values()[i], 64)
}
