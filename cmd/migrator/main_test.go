package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestStartupCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: missing endpoint", common.ErrInvalidConfig), exitStartup},
		{fmt.Errorf("%w: bad key", common.ErrAuthentication), exitStartup},
		{fmt.Errorf("%w: held by pid 42", common.ErrLocked), exitStartup},
		{errors.New("ping ledger: connection refused"), exitFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, startupCode(tt.err), tt.err.Error())
	}
}

func TestSummaryCode(t *testing.T) {
	assert.Equal(t, exitOK, summaryCode(pipeline.RunSummary{Processed: 3}))
	assert.Equal(t, exitFailed, summaryCode(pipeline.RunSummary{Failed: 1}))
	assert.Equal(t, exitFailed, summaryCode(pipeline.RunSummary{Err: errors.New("branch")}))
	assert.Equal(t, exitFailed, summaryCode(pipeline.RunSummary{Interrupted: true}))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("MIGRATOR_ROOT_FOLDER", "")
	t.Setenv("MIGRATOR_ENDPOINT", "")
	var stderr bytes.Buffer

	code := run(context.Background(), []string{"-lookback", "-1"}, &stderr)
	assert.Equal(t, exitStartup, code)
	assert.Contains(t, stderr.String(), "Build version:")
	assert.Contains(t, stderr.String(), "config:")
}
