package sinks

import "time"

// The remaining HTTP-shaped backends are thin named wrappers around
// HTTPSink: each exists as its own exported type (rather than callers
// constructing a bare HTTPSink) so a route's configuration can name the
// backend it's wiring without the caller needing to know the common
// implementation is shared, and so each can later grow backend-specific
// request shaping without changing every other one's constructor
// signature.

// InfluxDB posts batched records to an InfluxDB write endpoint.
type InfluxDB struct{ *HTTPSink }

// NewInfluxDB returns an InfluxDB sink posting to url (e.g.
// "http://host:8086/write?db=hopperd").
func NewInfluxDB(url string) (*InfluxDB, error) {
	s, err := NewHTTPSink("influxdb", url, 2*time.Second, 2)
	if err != nil {
		return nil, err
	}
	return &InfluxDB{s}, nil
}

// Elasticsearch posts batched records to an Elasticsearch bulk-shaped
// endpoint.
type Elasticsearch struct{ *HTTPSink }

// NewElasticsearch returns an Elasticsearch sink posting to url (e.g.
// "http://host:9200/hopperd/_bulk").
func NewElasticsearch(url string) (*Elasticsearch, error) {
	s, err := NewHTTPSink("elasticsearch", url, 2*time.Second, 2)
	if err != nil {
		return nil, err
	}
	return &Elasticsearch{s}, nil
}

// Firehose posts batched records to an HTTP-fronted Firehose delivery
// stream endpoint.
type Firehose struct{ *HTTPSink }

// NewFirehose returns a Firehose sink posting to url.
func NewFirehose(url string) (*Firehose, error) {
	s, err := NewHTTPSink("firehose", url, 3*time.Second, 2)
	if err != nil {
		return nil, err
	}
	return &Firehose{s}, nil
}

// Kinesis posts batched records to an HTTP-fronted Kinesis stream
// endpoint.
type Kinesis struct{ *HTTPSink }

// NewKinesis returns a Kinesis sink posting to url.
func NewKinesis(url string) (*Kinesis, error) {
	s, err := NewHTTPSink("kinesis", url, 3*time.Second, 2)
	if err != nil {
		return nil, err
	}
	return &Kinesis{s}, nil
}

// Federation posts batched records onward to a peer's HTTP ingest
// endpoint at the configured url. hopperd's own sources include no HTTP
// ingest endpoint.
type Federation struct{ *HTTPSink }

// NewFederation returns a Federation sink posting to url.
func NewFederation(url string) (*Federation, error) {
	s, err := NewHTTPSink("federation", url, 1*time.Second, 3)
	if err != nil {
		return nil, err
	}
	return &Federation{s}, nil
}
