// Package mock provides a recording Lambda client and a callback simulator
// for running the whisper transcriber without AWS credentials.
package mock

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// Invocation is one recorded Invoke call.
type Invocation struct {
	FunctionName   string
	InvocationType types.InvocationType
	Payload        []byte
}

// LambdaClient records every invocation instead of calling AWS.
// Safe for concurrent use.
type LambdaClient struct {
	mu          sync.Mutex
	invocations []Invocation
	err         error
	onInvoke    func(Invocation)
}

// NewLambdaClient creates a recording client that accepts every invocation.
func NewLambdaClient() *LambdaClient {
	return &LambdaClient{}
}

// SetError makes subsequent invocations fail with err. Failed invocations
// are still recorded.
func (c *LambdaClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// OnInvoke registers a hook run after each accepted invocation.
func (c *LambdaClient) OnInvoke(fn func(Invocation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInvoke = fn
}

// Invoke records the call and returns the 202 an Event invocation gets.
func (c *LambdaClient) Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	inv := Invocation{
		FunctionName:   aws.ToString(params.FunctionName),
		InvocationType: params.InvocationType,
		Payload:        append([]byte(nil), params.Payload...),
	}

	c.mu.Lock()
	c.invocations = append(c.invocations, inv)
	err := c.err
	hook := c.onInvoke
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook(inv)
	}
	return &lambda.InvokeOutput{StatusCode: 202}, nil
}

// Invocations returns a copy of the recorded calls in order.
func (c *LambdaClient) Invocations() []Invocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Invocation(nil), c.invocations...)
}
