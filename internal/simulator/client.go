package simulator

import (
	"context"
	"fmt"
	"math/rand"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cartridge/gather/internal/env"
)

// Client drives a remote simulator and implements env.Environment.
type Client struct {
	conn  *grpc.ClientConn
	opts  ResetOptions
	rng   *rand.Rand
	space *env.Box
}

// Dial connects to the simulator at addr. Actions are sampled locally with
// rng over the bounds the simulator reports after the first Reset.
func Dial(addr string, opts ResetOptions, rng *rand.Rand, dialOpts ...grpc.DialOption) (*Client, error) {
	dialOpts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, dialOpts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to simulator at %s: %w", addr, err)
	}
	return &Client{conn: conn, opts: opts, rng: rng}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Reset implements env.Environment.
func (c *Client) Reset(ctx context.Context) (env.State, error) {
	req, err := c.opts.toStruct()
	if err != nil {
		return env.State{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodReset, req, resp); err != nil {
		return env.State{}, fmt.Errorf("failed to reset simulator: %w", err)
	}
	state, err := decodeState(resp.GetFields()["state"])
	if err != nil {
		return env.State{}, fmt.Errorf("failed to decode reset state: %w", err)
	}

	if c.space == nil {
		if err := c.fetchActionSpace(ctx); err != nil {
			return env.State{}, err
		}
	}
	return state, nil
}

// Step implements env.Environment.
func (c *Client) Step(ctx context.Context, action env.Action) (env.StepResult, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"action": floatsToList(action),
	})
	if err != nil {
		return env.StepResult{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodStep, req, resp); err != nil {
		return env.StepResult{}, fmt.Errorf("failed to step simulator: %w", err)
	}
	res, err := decodeStep(resp)
	if err != nil {
		return env.StepResult{}, fmt.Errorf("failed to decode step: %w", err)
	}
	return res, nil
}

// ActionSpace implements env.Environment. It is nil until the first Reset.
func (c *Client) ActionSpace() env.Space {
	if c.space == nil {
		return nil
	}
	return c.space
}

func (c *Client) fetchActionSpace(ctx context.Context) error {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodActionSpace, &structpb.Struct{}, resp); err != nil {
		return fmt.Errorf("failed to get action space: %w", err)
	}
	f := resp.GetFields()
	space, err := env.NewBox(listToFloats(f["low"]), listToFloats(f["high"]), c.rng)
	if err != nil {
		return fmt.Errorf("invalid action space: %w", err)
	}
	c.space = space
	return nil
}
