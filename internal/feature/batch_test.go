package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchRequiresRows(t *testing.T) {
	_, err := NewBatch()
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBatchColumns(t *testing.T) {
	a, err := sampleInput().Validate()
	require.NoError(t, err)
	in := sampleInput()
	in.Gender = "female"
	in.ReadingScore = "60"
	b, err := in.Validate()
	require.NoError(t, err)

	batch, err := NewBatch(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())
	assert.Equal(t, Columns, batch.Columns())
	assert.Equal(t, "female", batch.Row(1).Gender())

	genders, err := batch.Strings(Gender)
	require.NoError(t, err)
	assert.Equal(t, []string{"male", "female"}, genders)

	reading, err := batch.Floats(ReadingScore)
	require.NoError(t, err)
	assert.Equal(t, []float64{75, 60}, reading)
}

func TestBatchColumnKindMismatch(t *testing.T) {
	rec, err := sampleInput().Validate()
	require.NoError(t, err)
	batch, err := NewBatch(rec)
	require.NoError(t, err)

	_, err = batch.Strings(ReadingScore)
	assert.Error(t, err)
	_, err = batch.Floats(Lunch)
	assert.Error(t, err)
	_, err = batch.Strings("math_score")
	assert.Error(t, err)
}

func TestBatchColumnsIsACopy(t *testing.T) {
	rec, _ := sampleInput().Validate()
	batch, _ := NewBatch(rec)

	cols := batch.Columns()
	cols[0] = "changed"
	assert.Equal(t, Gender, Columns[0])
}

func TestNewBatchRejectsZeroRecord(t *testing.T) {
	rec, _ := sampleInput().Validate()
	_, err := NewBatch(rec, Record{})
	assert.ErrorIs(t, err, ErrUnvalidated)
	assert.True(t, rec.Valid())
	assert.False(t, Record{}.Valid())
}
