package signal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const mint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func writeSignal(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PendingFile), []byte(body), 0o644))
}

func TestFileSource_PeekAndConsume(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource(dir, zaptest.NewLogger(t))

	c, err := src.Peek()
	require.NoError(t, err)
	assert.Nil(t, c)

	writeSignal(t, dir, `{"address":"`+mint+`","name":"Test Token","symbol":"TKN"}`)
	c, err = src.Peek()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, Candidate{Address: mint, Name: "Test Token", Symbol: "TKN"}, *c)

	require.NoError(t, src.Consume())
	require.NoError(t, src.Consume())
	_, err = os.Stat(filepath.Join(dir, PendingFile))
	assert.True(t, os.IsNotExist(err))
}

func TestFileSource_InvalidSignals(t *testing.T) {
	tests := map[string]string{
		"malformed json":  `{"address":`,
		"missing symbol":  `{"address":"` + mint + `","name":"Test"}`,
		"invalid address": `{"address":"not-a-key","name":"Test","symbol":"TKN"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeSignal(t, dir, body)

			_, err := NewFileSource(dir, zaptest.NewLogger(t)).Peek()
			assert.ErrorIs(t, err, ErrInvalidSignal)
		})
	}
}
