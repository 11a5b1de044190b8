package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"VIP:100:5:Early", Category{Name: "VIP", Price: 10000, Quantity: 5, Phase: "Early"}},
		{"GA:50:20", Category{Name: "GA", Price: 5000, Quantity: 20}},
		{" GA : 49.99 : 3 : Early Bird ", Category{Name: "GA", Price: 4999, Quantity: 3, Phase: "Early Bird"}},
		{"Balcony:75:0:Phase:2", Category{Name: "Balcony", Price: 7500, Quantity: 0, Phase: "Phase:2"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"", "VIP", "VIP:100", ":100:5", "VIP:abc:5", "VIP:100:x", "VIP:100:-1", "VIP:-5:1", "VIP:1e300:5:Early", "VIP:92233720368548:1"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode(raw)
			require.Error(t, err)
			var de *DecodeError
			assert.True(t, errors.As(err, &de))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncode_OmitsEmptyPhase(t *testing.T) {
	assert.Equal(t, "GA:50:20", Encode(Category{Name: "GA", Price: 5000, Quantity: 20}))
	assert.Equal(t, "VIP:150.50:10:Regular", Encode(Category{Name: "VIP", Price: 15050, Quantity: 10, Phase: "Regular"}))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	values := []Category{
		{Name: "VIP", Price: 0, Quantity: 0},
		{Name: "VIP", Price: 1, Quantity: 1, Phase: "Early"},
		{Name: "Floor Standing", Price: 123456, Quantity: 99999, Phase: "Last Minute"},
		{Name: "GA", Price: 5005, Quantity: 7, Phase: "Day:1"},
		{Name: "GA", Price: 5005, Quantity: 7, Phase: "A : B"},
		{Name: "Box", Price: MaxPrice / 100 * 100, Quantity: 1, Phase: "x:"},
	}
	for _, c := range values {
		require.NoError(t, c.Validate())
		got, err := Decode(Encode(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestValidate_RejectsUnencodable(t *testing.T) {
	assert.Error(t, Category{Name: "A:B", Price: 1, Quantity: 1}.Validate())
	assert.Error(t, Category{Name: " ", Price: 1, Quantity: 1}.Validate())
	assert.Error(t, Category{Name: "A", Price: 1, Quantity: -1}.Validate())
	assert.Error(t, Category{Name: "A", Price: MaxPrice + 1, Quantity: 1}.Validate())
	assert.Error(t, Category{Name: "A", Price: 1, Quantity: 1, Phase: " A"}.Validate())
}

func TestDecode_PhaseKeepsInnerSpacing(t *testing.T) {
	c, err := Decode(" GA : 50 : 3 :  Day : 1 ")
	require.NoError(t, err)
	assert.Equal(t, Category{Name: "GA", Price: 5000, Quantity: 3, Phase: "Day : 1"}, c)
}

func TestDecrement_FloorsAtZero(t *testing.T) {
	out, err := Decrement("GA:50:3:Phase1", 2)
	require.NoError(t, err)
	assert.Equal(t, "GA:50:1:Phase1", out)

	out, err = Decrement(out, 5)
	require.NoError(t, err)
	assert.Equal(t, "GA:50:0:Phase1", out)

	out, err = Decrement(out, 1)
	require.NoError(t, err)
	assert.Equal(t, "GA:50:0:Phase1", out)
}

func TestDecrement_NeverNegative(t *testing.T) {
	raw := "GA:50:10"
	for _, amount := range []int{3, 0, 4, 100, 1, 7} {
		var err error
		raw, err = Decrement(raw, amount)
		require.NoError(t, err)
		c, err := Decode(raw)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, c.Quantity, 0)
	}
}

func TestDecrement_Errors(t *testing.T) {
	_, err := Decrement("GA:50", 1)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decrement("GA:50:1", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTake(t *testing.T) {
	rows := []string{"VIP:100:5:Early", "junk", "GA:50:1:Phase1"}

	out, c, err := Take(rows, Key{Name: "GA", Phase: "Phase1"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"VIP:100:5:Early", "junk", "GA:50:0:Phase1"}, out)
	assert.Equal(t, 0, c.Quantity)
	assert.Equal(t, "GA:50:1:Phase1", rows[2], "input must not be mutated")

	_, _, err = Take(out, Key{Name: "GA", Phase: "Phase1"}, 1)
	assert.ErrorIs(t, err, ErrInsufficient)

	_, _, err = Take(rows, Key{Name: "GA", Phase: "Other"}, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = Take(rows, Key{Name: "GA", Phase: "Phase1"}, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFind_DuplicateKey(t *testing.T) {
	_, _, err := Find([]string{"VIP:100:5:Early", "VIP:120:2:Early"}, Key{Name: "VIP", Phase: "Early"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "100", FormatPrice(10000))
	assert.Equal(t, "0.05", FormatPrice(5))
	assert.Equal(t, "12.30", FormatPrice(1230))
}
