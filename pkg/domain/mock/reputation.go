package mock

import (
	"context"
	"sync/atomic"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/intel"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
)

var (
	_ interfaces.URLReputation  = &URLReputationMock{}
	_ interfaces.FileReputation = &FileReputationMock{}
	_ interfaces.IntelLookup    = &IntelLookupMock{}
	_ interfaces.IntelReporter  = &IntelReporterMock{}
)

type URLReputationMock struct {
	CheckURLsFunc func(ctx context.Context, urls []string) ([]threat.URLMatch, error)
	calls         atomic.Int64
}

func (m *URLReputationMock) CheckURLs(ctx context.Context, urls []string) ([]threat.URLMatch, error) {
	if m.CheckURLsFunc == nil {
		panic("URLReputationMock.CheckURLsFunc: method is nil but URLReputation.CheckURLs was just called")
	}
	m.calls.Add(1)
	return m.CheckURLsFunc(ctx, urls)
}

func (m *URLReputationMock) CheckURLsCalls() int { return int(m.calls.Load()) }

type FileReputationMock struct {
	LookupHashFunc func(ctx context.Context, sha256 string) (*threat.FileReport, error)
	calls          atomic.Int64
}

func (m *FileReputationMock) LookupHash(ctx context.Context, sha256 string) (*threat.FileReport, error) {
	if m.LookupHashFunc == nil {
		panic("FileReputationMock.LookupHashFunc: method is nil but FileReputation.LookupHash was just called")
	}
	m.calls.Add(1)
	return m.LookupHashFunc(ctx, sha256)
}

func (m *FileReputationMock) LookupHashCalls() int { return int(m.calls.Load()) }

type IntelLookupMock struct {
	LookupFunc func(ctx context.Context, indicator ioc.Indicator) (*intel.Record, error)
	calls      atomic.Int64
}

func (m *IntelLookupMock) Lookup(ctx context.Context, indicator ioc.Indicator) (*intel.Record, error) {
	if m.LookupFunc == nil {
		panic("IntelLookupMock.LookupFunc: method is nil but IntelLookup.Lookup was just called")
	}
	m.calls.Add(1)
	return m.LookupFunc(ctx, indicator)
}

func (m *IntelLookupMock) LookupCalls() int { return int(m.calls.Load()) }

type IntelReporterMock struct {
	ReportSightingFunc func(ctx context.Context, value string, contextID string) error
	CreateRecordFunc   func(ctx context.Context, signal threat.Signal, contextID string) (*intel.Record, error)
	sightings          atomic.Int64
	records            atomic.Int64
}

func (m *IntelReporterMock) ReportSighting(ctx context.Context, value string, contextID string) error {
	if m.ReportSightingFunc == nil {
		panic("IntelReporterMock.ReportSightingFunc: method is nil but IntelReporter.ReportSighting was just called")
	}
	m.sightings.Add(1)
	return m.ReportSightingFunc(ctx, value, contextID)
}

func (m *IntelReporterMock) CreateRecord(ctx context.Context, signal threat.Signal, contextID string) (*intel.Record, error) {
	if m.CreateRecordFunc == nil {
		panic("IntelReporterMock.CreateRecordFunc: method is nil but IntelReporter.CreateRecord was just called")
	}
	m.records.Add(1)
	return m.CreateRecordFunc(ctx, signal, contextID)
}

func (m *IntelReporterMock) ReportSightingCalls() int { return int(m.sightings.Load()) }
func (m *IntelReporterMock) CreateRecordCalls() int   { return int(m.records.Load()) }
