package hardware

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ryzenAdjInfo = `CPU Family: Rembrandt
SMU BIOS Interface Version: 18
Version: v0.14.0
PM Table Version: 450005
|        Name         |   Value   |     Parameter      |
|---------------------|-----------|--------------------|
| STAPM LIMIT         |    15.000 | stapm-limit        |
| STAPM VALUE         |     3.412 |                    |
| PPT LIMIT FAST      |    30.000 | fast-limit         |
| PPT VALUE FAST      |     4.020 |                    |
| PPT LIMIT SLOW      |    20.000 | slow-limit         |
| PPT VALUE SLOW      |     3.501 |                    |
| STT LIMIT APU       |    45.000 | apu-skin-temp      |
`

type recordedCall struct {
	name string
	args []string
}

func fakeRunner(out string, err error, calls *[]recordedCall) commandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})
		return []byte(out), err
	}
}

func TestRyzenAdjApplyArguments(t *testing.T) {
	var calls []recordedCall
	r := &RyzenAdj{path: "/usr/bin/ryzenadj", run: fakeRunner("Sucessfully set stapm_limit to 7500\n", nil, &calls)}

	limits := Limits{}.With(Sustained, 7500).With(Fast, 10000).With(SkinTemp, 42)
	require.NoError(t, r.Apply(context.Background(), limits))

	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/ryzenadj", calls[0].name)
	assert.Equal(t, []string{"--stapm-limit=7500", "--fast-limit=10000", "--apu-skin-temp=42"}, calls[0].args)
}

func TestRyzenAdjApplyNothing(t *testing.T) {
	var calls []recordedCall
	r := &RyzenAdj{path: "ryzenadj", run: fakeRunner("", nil, &calls)}

	require.NoError(t, r.Apply(context.Background(), Limits{}))
	assert.Empty(t, calls)
}

func TestRyzenAdjReadLimits(t *testing.T) {
	var calls []recordedCall
	r := &RyzenAdj{path: "ryzenadj", run: fakeRunner(ryzenAdjInfo, nil, &calls)}

	limits, err := r.ReadLimits(context.Background())
	require.NoError(t, err)

	want := Limits{}.With(Sustained, 15000).With(Fast, 30000).With(Slow, 20000).With(SkinTemp, 45)
	assert.Equal(t, want, limits)
	assert.Equal(t, []string{"--info"}, calls[0].args)
}

func TestClassifyRyzenAdj(t *testing.T) {
	expired, cancel := context.WithCancel(context.Background())
	cancel()

	exitErr := errors.New("exit status 255")

	tests := []struct {
		name  string
		ctx   context.Context
		out   string
		err   error
		check func(error) bool
	}{
		{"missing binary", context.Background(), "", exec.ErrNotFound, IsUnavailable},
		{"no privilege", context.Background(), "Unable to get memory access, check permission\n", exitErr, IsUnavailable},
		{"family unsupported", context.Background(), "set_fast_limit is not supported on this family\n", nil, IsUnsupported},
		{"smu rejected", context.Background(), "set_stapm_limit is rejected by SMU\n", exitErr, IsUnsupported},
		{"smu timeout", context.Background(), "SMU timeout\n", exitErr, IsTimeout},
		{"deadline", expired, "", exitErr, IsTimeout},
		{"unknown exit", context.Background(), "", exitErr, IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRyzenAdj(tt.ctx, []byte(tt.out), tt.err)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected class for %v", err)
		})
	}

	assert.NoError(t, classifyRyzenAdj(context.Background(), []byte("Sucessfully set fast_limit to 25000\n"), nil))
}
