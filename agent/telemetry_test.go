package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemCollector(t *testing.T) {
	p := fakeRoot(t, map[string]string{
		"proc/meminfo":                         sampleMeminfo,
		"proc/stat":                            "cpu  100 0 100 700 100 0 0 0\n",
		"proc/uptime":                          "90.5 10.0\n",
		"sys/class/thermal/thermal_zone0/temp": "51234\n",
	})
	c := &systemCollector{
		proc:     p,
		diskPath: p.root,
		hostname: "pi",
		ip:       func() string { return "" },
	}

	first := c.Collect()
	assert.Equal(t, "pi", first.Hostname)
	assert.Equal(t, "0.0.0.0", first.IPAddress)
	assert.Equal(t, int64(90), first.UptimeSeconds)
	assert.InDelta(t, 3906.25, first.MemTotalMB, 1e-9)
	assert.InDelta(t, 976.56, first.MemUsedMB, 1e-9)
	assert.Zero(t, first.CPUPercent)
	require.NotNil(t, first.TempCelsius)
	assert.InDelta(t, 51.2, *first.TempCelsius, 1e-9)
	assert.Nil(t, first.CPUFreqMHz)
	assert.Greater(t, first.DiskTotalGB, 0.0)

	// 100 more jiffies, 25 of them idle
	p2 := fakeRoot(t, map[string]string{"proc/stat": "cpu  150 0 125 720 105 0 0 0\n"})
	c.proc = p2
	second := c.Collect()
	assert.InDelta(t, 75.0, second.CPUPercent, 1e-9)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, round(1.2345, 2))
	assert.Equal(t, 2.3, round(2.25, 1))
	assert.Equal(t, 0.001, round(0.00149, 3))
}
