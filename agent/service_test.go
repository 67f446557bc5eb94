package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExecArgs(t *testing.T) {
	assert.Empty(t, buildExecArgs("", "", "", false))

	args := buildExecArgs("node.yaml", "https://gw.example.com", "pi", true)
	abs, _ := filepath.Abs("node.yaml")
	assert.Equal(t, []string{
		"--config=" + abs,
		"--gateway=https://gw.example.com",
		"--name=pi",
		"--allow-shell",
	}, args)
}

func TestRenderSystemdUnit(t *testing.T) {
	unit := renderSystemdUnit(serviceSpec{
		Exe:   "/usr/local/bin/forgeai-node",
		Args:  []string{"--gateway=http://gw:18800"},
		Token: "s3cret",
	})
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/forgeai-node --gateway=http://gw:18800\n")
	assert.Contains(t, unit, "Environment=FORGEAI_NODE_TOKEN=s3cret\n")
	assert.Contains(t, unit, "Restart=always")
	assert.NotContains(t, unit, "--token")

	noToken := renderSystemdUnit(serviceSpec{Exe: "/bin/agent"})
	assert.NotContains(t, noToken, "Environment=")
	assert.Contains(t, noToken, "ExecStart=/bin/agent\n")
}

func TestRenderSystemdUnitQuotesArgs(t *testing.T) {
	unit := renderSystemdUnit(serviceSpec{
		Exe:   "/opt/forge ai/forgeai-node",
		Args:  []string{"--name=Lab Pi", "--config=/etc/forge/50%.yaml", `--name=say "hi"`, "--gateway=$HOST"},
		Token: "p@ss word",
	})
	assert.Contains(t, unit, `ExecStart="/opt/forge ai/forgeai-node" "--name=Lab Pi" --config=/etc/forge/50%%.yaml "--name=say \"hi\"" --gateway=$$HOST`+"\n")
	assert.Contains(t, unit, `Environment="FORGEAI_NODE_TOKEN=p@ss word"`+"\n")
}

func TestSystemdQuote(t *testing.T) {
	tests := map[string]string{
		"plain":      "plain",
		"":           `""`,
		"a b":        `"a b"`,
		`back\slash`: `"back\\slash"`,
		"tab\there":  `"tab\there"`,
		"100%":       "100%%",
	}
	for in, want := range tests {
		assert.Equal(t, want, systemdQuote(in), "input %q", in)
	}
}

func TestRenderLaunchdPlist(t *testing.T) {
	plist := renderLaunchdPlist(serviceSpec{
		Exe:   "/usr/local/bin/forgeai-node",
		Args:  []string{"--name=a&b"},
		Token: "<tok>",
	})
	assert.Contains(t, plist, "<string>"+launchdLabel+"</string>")
	assert.Contains(t, plist, "    <string>/usr/local/bin/forgeai-node</string>\n    <string>--name=a&amp;b</string>")
	assert.Contains(t, plist, "<key>FORGEAI_NODE_TOKEN</key><string>&lt;tok&gt;</string>")
	assert.True(t, strings.HasPrefix(plist, "<?xml"))
}
