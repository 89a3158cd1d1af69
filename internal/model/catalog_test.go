package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

func TestEligibleItems(t *testing.T) {
	drivers := []model.Driver{
		{ID: "d1", Active: true},
		{ID: "d2", Active: false},
	}
	items := []model.Item{
		{ID: "i1", DriverID: "d1", Status: model.ItemStatusActive},
		{ID: "i2", DriverID: "d1", Status: model.ItemStatusHidden},
		{ID: "i3", DriverID: "d1", Status: model.ItemStatusDraft},
		{ID: "i4", DriverID: "d1", Status: model.ItemStatusTrashed},
		{ID: "i5", DriverID: "d2", Status: model.ItemStatusActive},
		{ID: "i6", DriverID: "gone", Status: model.ItemStatusActive},
	}

	got := model.EligibleItems(drivers, items)
	assert.Len(t, got, 1)
	assert.Equal(t, "i1", got[0].ID)
}

func TestItemSetCovers(t *testing.T) {
	items := []model.Item{{ID: "a"}, {ID: "b"}}
	s := model.NewItemSet("a")
	assert.False(t, s.Covers(items))
	s.Add("b")
	assert.True(t, s.Covers(items))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())

	clone := s.Clone()
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 2, clone.Len())
}
