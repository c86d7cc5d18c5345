package progrock_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/strata/internal/adapters/telemetry/progrock"
	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
)

func TestNew(t *testing.T) {
	assert.NotNil(t, progrock.New())
}

func TestRecorder_StepLifecycle(t *testing.T) {
	recorder := progrock.New()
	fp := digest.FromString("step")

	ctx, vertex := recorder.Record(context.Background(), "RUN make", ports.WithVertexID(fp.String()))

	got, ok := ports.VertexFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, vertex, got)

	_, err := vertex.Stdout().Write([]byte("building\n"))
	require.NoError(t, err)
	_, err = vertex.Stderr().Write([]byte("warning\n"))
	require.NoError(t, err)
	vertex.Log(domain.LogLevelDebug, "debug msg")
	vertex.Complete(nil)

	assert.NoError(t, recorder.Close())
}

func TestRecorder_CachedAndFailed(t *testing.T) {
	recorder := progrock.New()

	_, cached := recorder.Record(context.Background(), "COPY . /app")
	cached.Cached()
	cached.Complete(nil)

	_, failed := recorder.Record(context.Background(), "RUN exit 1", ports.WithVertexID("not-a-digest"))
	failed.Complete(errors.New("exit status 1"))

	assert.NoError(t, recorder.Close())
}

func TestRecorder_Subscribe(t *testing.T) {
	recorder := progrock.New()
	feed := recorder.Subscribe()

	fp := digest.FromString("step")
	_, vertex := recorder.Record(context.Background(), "RUN make", ports.WithVertexID(fp.String()))
	vertex.Complete(nil)

	update, err := feed.Read()
	require.NoError(t, err)
	require.NotEmpty(t, update.Vertexes)
	assert.Equal(t, fp.String(), update.Vertexes[0].Id)
	assert.Equal(t, "RUN make", update.Vertexes[0].Name)

	recorder.Unsubscribe(feed)
	_, other := recorder.Record(context.Background(), "RUN other")
	other.Complete(nil)

	for {
		_, err := feed.Read()
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
	}

	assert.NoError(t, recorder.Close())
}
