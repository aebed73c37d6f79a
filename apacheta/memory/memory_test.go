package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/storetest"
	"github.com/teranos/yanantin/errors"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) apacheta.TensorStore {
		return New(zaptest.NewLogger(t).Sugar())
	})
}

func TestAccessPolicyRefusesWrites(t *testing.T) {
	readOnly := apacheta.AccessPolicyFunc(func(caller, operation, target string) bool {
		return caller == "auditor" && operation == "count_records"
	})
	s := New(nil, apacheta.WithPolicy(readOnly), apacheta.WithCaller("auditor"))

	err := s.StoreTensor(storetest.NewFixture().T1)
	require.Error(t, err)
	assert.True(t, errors.IsAccessDenied(err), "got %v", err)

	_, err = s.ListTensors()
	assert.True(t, errors.IsAccessDenied(err))

	counts, err := s.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 0, counts["tensors"])

	assert.True(t, s.CheckAccess("auditor", "count_records", ""))
	assert.False(t, s.CheckAccess("someone", "count_records", ""))
}

func TestConcurrentWritesOfOneIDAdmitExactlyOne(t *testing.T) {
	s := New(zaptest.NewLogger(t).Sugar())
	tensor := storetest.NewFixture().T1

	var wg sync.WaitGroup
	results := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.StoreTensor(tensor)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.IsImmutable(err))
	}
	assert.Equal(t, 1, succeeded)

	counts, err := s.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.KindTensor.CountKey()])
}
