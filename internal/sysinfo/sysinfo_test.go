package sysinfo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostSample(t *testing.T) {
	u, err := Host{}.Sample(context.Background())
	if err != nil {
		t.Skipf("host sampling unavailable: %v", err)
	}
	for name, v := range map[string]float64{
		"cpu":    u.CPUPercent,
		"memory": u.MemoryPercent,
		"disk":   u.DiskPercent,
	} {
		require.GreaterOrEqual(t, v, 0.0, name)
		require.LessOrEqual(t, v, 100.0, name)
	}
}

func TestSamplerFunc(t *testing.T) {
	want := Usage{CPUPercent: 1, MemoryPercent: 2, DiskPercent: 3}
	var s Sampler = SamplerFunc(func(context.Context) (Usage, error) { return want, nil })
	got, err := s.Sample(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	boom := errors.New("boom")
	s = SamplerFunc(func(context.Context) (Usage, error) { return Usage{}, boom })
	_, err = s.Sample(context.Background())
	require.ErrorIs(t, err, boom)
}
