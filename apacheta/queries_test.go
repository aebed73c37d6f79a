package apacheta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/apacheta/storetest"
	"github.com/teranos/yanantin/errors"
)

func TestRunQueryCoversEveryName(t *testing.T) {
	s := memory.New(nil)
	f := storetest.NewFixture()
	storetest.Populate(t, s, f)

	args := map[string]string{
		apacheta.ParamTopic:      "storage",
		apacheta.ParamClaimID:    storetest.ID("c2").String(),
		apacheta.ParamTensorID:   f.T1.ID.String(),
		apacheta.ParamTag:        "yanantin",
		apacheta.ParamEntityUUID: f.EntityGroup.String(),
		apacheta.ParamFamily:     "claude",
		apacheta.ParamInstanceID: "T4",
	}
	names := apacheta.QueryNames()
	require.Len(t, names, len(apacheta.QueryParams))
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			_, err := apacheta.RunQuery(s, name, args[apacheta.QueryParams[name]])
			assert.NoError(t, err)
		})
	}
}

func TestRunQueryResults(t *testing.T) {
	s := memory.New(nil)
	f := storetest.NewFixture()
	storetest.Populate(t, s, f)

	v, err := apacheta.RunQuery(s, apacheta.QueryTensorsByModel, "gpt")
	require.NoError(t, err)
	tensors, ok := v.([]models.TensorRecord)
	require.True(t, ok)
	require.Len(t, tensors, 1)
	assert.Equal(t, f.T2.ID, tensors[0].ID)

	_, err = apacheta.RunQuery(s, apacheta.QueryLineage, "not-a-uuid")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = apacheta.RunQuery(s, "no_such_query", "")
	assert.ErrorIs(t, err, apacheta.ErrUnknownQuery)
}
