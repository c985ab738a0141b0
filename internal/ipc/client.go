package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon's worker pool status and job counts.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Vpo.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns jobs matching req.
func (c *Client) JobList(req JobListRequest) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Vpo.JobList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDescribe returns details for a single job.
func (c *Client) JobDescribe(id string) (*JobDescribeResponse, error) {
	var resp JobDescribeResponse
	req := JobDescribeRequest{ID: id}
	if err := c.client.Call("Vpo.JobDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobEnqueue admits a new job onto the queue.
func (c *Client) JobEnqueue(req JobEnqueueRequest) (*JobEnqueueResponse, error) {
	var resp JobEnqueueResponse
	if err := c.client.Call("Vpo.JobEnqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobRetry re-enqueues a failed or cancelled job.
func (c *Client) JobRetry(id string) (*JobRetryResponse, error) {
	var resp JobRetryResponse
	req := JobRetryRequest{ID: id}
	if err := c.client.Call("Vpo.JobRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobCancel cancels a queued or running job.
func (c *Client) JobCancel(id string) (*JobCancelResponse, error) {
	var resp JobCancelResponse
	req := JobCancelRequest{ID: id}
	if err := c.client.Call("Vpo.JobCancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause stops the worker pool from claiming new jobs.
func (c *Client) Pause() (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call("Vpo.Pause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unpause resumes job claiming.
func (c *Client) Unpause() (*UnpauseResponse, error) {
	var resp UnpauseResponse
	if err := c.client.Call("Vpo.Unpause", UnpauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resize changes the worker pool's concurrency.
func (c *Client) Resize(concurrency int) (*ResizeResponse, error) {
	var resp ResizeResponse
	req := ResizeRequest{Concurrency: concurrency}
	if err := c.client.Call("Vpo.Resize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns aggregate job counts by status.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.client.Call("Vpo.QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
