package communication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client talks to the communication REST API.
type Client struct {
	base string
	user string
	http *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// http://localhost:4030. Requests are issued as the given user.
func NewClient(baseURL, user string) *Client {
	return &Client{
		base: baseURL,
		user: user,
		http: &http.Client{},
	}
}

// Communication mirrors the API representation of a communication record.
type Communication struct {
	ID                  string `json:"ID"`
	CommunicationType   string `json:"CommunicationType"`
	CommunicationMedium string `json:"CommunicationMedium"`
	SentOrReceived      string `json:"SentOrReceived"`
	Status              string `json:"Status"`
	DeliveryStatus      string `json:"DeliveryStatus"`
	Subject             string `json:"Subject"`
	Content             string `json:"Content"`
	Sender              string `json:"Sender"`
	SenderFullName      string `json:"SenderFullName"`
	User                string `json:"User"`
	ReferenceDoctype    string `json:"ReferenceDoctype"`
	ReferenceName       string `json:"ReferenceName"`
	Links               []struct {
		LinkDoctype string `json:"LinkDoctype"`
		LinkName    string `json:"LinkName"`
		Position    int    `json:"Position"`
	} `json:"Links"`
}

type CreateCommunicationRequest struct {
	ID                  string `json:"id,omitempty"`
	CommunicationType   string `json:"communication_type,omitempty"`
	CommunicationMedium string `json:"communication_medium,omitempty"`
	SentOrReceived      string `json:"sent_or_received,omitempty"`
	Subject             string `json:"subject,omitempty"`
	Content             string `json:"content,omitempty"`
	Sender              string `json:"sender,omitempty"`
	ReferenceDoctype    string `json:"reference_doctype,omitempty"`
	ReferenceName       string `json:"reference_name,omitempty"`
}

type ListCommunicationsResponse struct {
	Communications []*Communication `json:"communications"`
	Total          int64            `json:"total"`
}

func (c *Client) CreateCommunication(ctx context.Context, req *CreateCommunicationRequest) (*Communication, error) {
	var comm Communication
	err := c.do(ctx, http.MethodPost, "/v1/communications", req, &comm)
	return &comm, err
}

func (c *Client) GetCommunication(ctx context.Context, id string) (*Communication, error) {
	var comm Communication
	err := c.do(ctx, http.MethodGet, "/v1/communications/"+url.PathEscape(id), nil, &comm)
	return &comm, err
}

func (c *Client) ListCommunications(ctx context.Context, referenceDoctype, referenceName string) (*ListCommunicationsResponse, error) {
	q := url.Values{}
	if referenceDoctype != "" {
		q.Set("reference_doctype", referenceDoctype)
	}
	if referenceName != "" {
		q.Set("reference_name", referenceName)
	}

	path := "/v1/communications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var res ListCommunicationsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return &res, err
}

func (c *Client) DeleteCommunication(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/communications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddLink(ctx context.Context, id, doctype, name string) (*Communication, error) {
	var comm Communication
	err := c.do(ctx, http.MethodPost, "/v1/communications/"+url.PathEscape(id)+"/links",
		map[string]string{"doctype": doctype, "name": name}, &comm)
	return &comm, err
}

func (c *Client) RemoveLink(ctx context.Context, id, doctype, name string) (*Communication, error) {
	var comm Communication
	err := c.do(ctx, http.MethodDelete, "/v1/communications/"+url.PathEscape(id)+"/links",
		map[string]string{"doctype": doctype, "name": name}, &comm)
	return &comm, err
}

func (c *Client) SetDeliveryStatus(ctx context.Context, id string) (string, error) {
	var res struct {
		DeliveryStatus string `json:"delivery_status"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/communications/"+url.PathEscape(id)+"/delivery-status", nil, &res)
	return res.DeliveryStatus, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("X-User", c.user)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(res.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, res.StatusCode)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(out)
}
