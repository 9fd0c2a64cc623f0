package simulator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cartridge/gather/internal/env"
	"github.com/cartridge/gather/internal/kinematic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, factory Factory) (*Server, func(opts ResetOptions) *Client) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(zerolog.Nop())))
	sim := NewServer(factory, zerolog.Nop())
	sim.Register(grpcServer)

	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(func() {
		grpcServer.Stop()
		_ = sim.Close()
	})

	dial := func(opts ResetOptions) *Client {
		client, err := Dial("passthrough:///bufnet", opts, rand.New(rand.NewSource(3)),
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}))
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		return client
	}
	return sim, dial
}

func kinematicFactory(t *testing.T, built *[]ResetOptions) Factory {
	return func(opts ResetOptions) (env.Environment, error) {
		*built = append(*built, opts)
		return kinematic.New(kinematic.Options{
			MaxSteps: opts.MaxSteps,
			Width:    opts.Width,
			Height:   opts.Height,
			Seed:     11,
		})
	}
}

func TestClient_ResetAndStepRoundTrip(t *testing.T) {
	var built []ResetOptions
	_, dial := startServer(t, kinematicFactory(t, &built))
	client := dial(ResetOptions{MaxSteps: 3, Width: 32, Height: 24})
	ctx := context.Background()

	assert.Nil(t, client.ActionSpace())

	state, err := client.Reset(ctx)
	require.NoError(t, err)
	for _, img := range state {
		require.NotNil(t, img)
		assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
	}

	space := client.ActionSpace()
	require.NotNil(t, space)
	assert.Equal(t, kinematic.NumJoints, space.Dim())

	var last env.StepResult
	for i := 0; i < 3; i++ {
		last, err = client.Step(ctx, space.Sample())
		require.NoError(t, err)
	}
	assert.True(t, last.Done)
	assert.Equal(t, -1.0, last.Reward)
	d, err := last.Info.Distance()
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)
	assert.Equal(t, false, last.Info["grasped"])

	// same options reuse the environment
	_, err = client.Reset(ctx)
	require.NoError(t, err)
	assert.Len(t, built, 1)
}

func TestClient_NewOptionsRebuildEnvironment(t *testing.T) {
	var built []ResetOptions
	_, dial := startServer(t, kinematicFactory(t, &built))
	ctx := context.Background()

	_, err := dial(ResetOptions{MaxSteps: 3, Width: 16, Height: 12}).Reset(ctx)
	require.NoError(t, err)
	_, err = dial(ResetOptions{MaxSteps: 5, Width: 16, Height: 12, GUI: true}).Reset(ctx)
	require.NoError(t, err)

	require.Len(t, built, 2)
	assert.True(t, built[1].GUI)
	assert.Equal(t, 5, built[1].MaxSteps)
}

func TestClient_StepBeforeReset(t *testing.T) {
	var built []ResetOptions
	_, dial := startServer(t, kinematicFactory(t, &built))
	client := dial(ResetOptions{MaxSteps: 3, Width: 16, Height: 12})

	_, err := client.Step(context.Background(), env.Action{0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(errors.Unwrap(err)))
}

func TestClient_FactoryError(t *testing.T) {
	_, dial := startServer(t, func(ResetOptions) (env.Environment, error) {
		return nil, errors.New("no display")
	})
	client := dial(ResetOptions{MaxSteps: 3, GUI: true})

	_, err := client.Reset(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestClient_InvalidAction(t *testing.T) {
	var built []ResetOptions
	_, dial := startServer(t, kinematicFactory(t, &built))
	client := dial(ResetOptions{MaxSteps: 3, Width: 16, Height: 12})
	ctx := context.Background()

	_, err := client.Reset(ctx)
	require.NoError(t, err)
	_, err = client.Step(ctx, env.Action{1})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestEncodeDecodeState(t *testing.T) {
	var state env.State
	for i := range state {
		img := image.NewRGBA(image.Rect(0, 0, 3, 2))
		for p := 3; p < len(img.Pix); p += 4 {
			img.Pix[p] = 0xff
		}
		img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		img.Set(2, 0, color.RGBA{R: uint8(i), G: 255, B: 1, A: 255})
		state[i] = img
	}

	res, err := encodeStep(env.StepResult{State: state, Reward: 0.5, Done: true, Info: env.Info{"distance": 0.2}})
	require.NoError(t, err)
	decoded, err := decodeStep(res)
	require.NoError(t, err)

	assert.Equal(t, 0.5, decoded.Reward)
	assert.True(t, decoded.Done)
	assert.Equal(t, env.Info{"distance": 0.2}, decoded.Info)
	for i := range state {
		assert.Equal(t, state[i].(*image.RGBA).Pix, decoded.State[i].(*image.RGBA).Pix)
	}
}
