package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, sec, subs := env.seedTree(t, "营收", "利润")

	content := "定稿内容"
	_, err := env.ledger.Save(subs[0].ID, SaveVersionInput{Content: &content, GeneratedBy: "user_edit"})
	require.NoError(t, err)

	snap, err := env.snapshots.Create(tpl.ID, "analyst")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.VersionNumber)

	// 快照之后大改：删小节、改章节名、加新小节
	require.NoError(t, env.subsections.Delete(subs[1].ID))
	_, err = env.sections.Rename(sec.ID, "改名后的章节")
	require.NoError(t, err)
	_, err = env.subsections.Create(CreateSubsectionInput{SectionID: sec.ID, Title: "多余小节"})
	require.NoError(t, err)

	result, err := env.snapshots.Restore(tpl.ID, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SectionsRestored)

	tree, err := env.templates.GetTree(tpl.ID)
	require.NoError(t, err)
	require.Len(t, tree.Sections, 1)
	assert.Equal(t, "财务", tree.Sections[0].Title)
	require.Len(t, tree.Sections[0].Subsections, 2)
	assert.Equal(t, "营收", tree.Sections[0].Subsections[0].Title)
	assert.Equal(t, "利润", tree.Sections[0].Subsections[1].Title)
	assert.Equal(t, "定稿内容", tree.Sections[0].Subsections[0].Content)
}

func TestSnapshotRestoreRejectsForeignSnapshot(t *testing.T) {
	env := newTestEnv(t, 2)
	tplA, _, _ := env.seedTree(t, "营收")
	tplB, err := env.templates.Create(CreateTemplateInput{Name: "另一个模板"})
	require.NoError(t, err)

	snap, err := env.snapshots.Create(tplA.ID, "")
	require.NoError(t, err)

	_, err = env.snapshots.Restore(tplB.ID, snap.ID)
	assert.Error(t, err)
}

func TestForkCreatesIndependentTemplate(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, _, subs := env.seedTree(t, "营收")

	fork, err := env.snapshots.Fork(tpl.ID, "复盘用副本")
	require.NoError(t, err)
	assert.NotEqual(t, tpl.ID, fork.Template.ID)
	assert.Equal(t, "复盘用副本", fork.Template.Name)
	assert.Equal(t, tpl.ID, fork.ForkedFrom)
	assert.Equal(t, "draft", fork.Template.Status)

	// 改分叉不影响原模板
	forkTree, err := env.templates.GetTree(fork.Template.ID)
	require.NoError(t, err)
	require.Len(t, forkTree.Sections, 1)
	require.Len(t, forkTree.Sections[0].Subsections, 1)
	require.NoError(t, env.subsections.Delete(forkTree.Sections[0].Subsections[0].ID))

	orig, err := env.subsections.Get(subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "营收", orig.Title)
}

func TestForkCopiesLiveTreeNotLastSnapshot(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, sec, _ := env.seedTree(t, "营收")

	_, err := env.snapshots.Create(tpl.ID, "")
	require.NoError(t, err)

	// 快照之后的实时改动也要进分叉
	_, err = env.sections.Create(tpl.ID, "风险", nil)
	require.NoError(t, err)
	_, err = env.subsections.Create(CreateSubsectionInput{SectionID: sec.ID, Title: "利润"})
	require.NoError(t, err)

	fork, err := env.snapshots.Fork(tpl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "季度报告 (fork)", fork.Template.Name)

	forkTree, err := env.templates.GetTree(fork.Template.ID)
	require.NoError(t, err)
	require.Len(t, forkTree.Sections, 2)
	assert.Equal(t, "财务", forkTree.Sections[0].Title)
	assert.Equal(t, "风险", forkTree.Sections[1].Title)
	require.Len(t, forkTree.Sections[0].Subsections, 2)
	assert.Equal(t, "利润", forkTree.Sections[0].Subsections[1].Title)
}

func TestForkWorksWithoutAnySnapshot(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, _, _ := env.seedTree(t, "营收")

	fork, err := env.snapshots.Fork(tpl.ID, "无快照分叉")
	require.NoError(t, err)
	forkTree, err := env.templates.GetTree(fork.Template.ID)
	require.NoError(t, err)
	require.Len(t, forkTree.Sections, 1)
	require.Len(t, forkTree.Sections[0].Subsections, 1)
}

func TestForkMissingTemplate(t *testing.T) {
	env := newTestEnv(t, 2)
	_, err := env.snapshots.Fork(9999, "x")
	assert.Error(t, err)
}

func TestSnapshotListOrder(t *testing.T) {
	env := newTestEnv(t, 2)
	tpl, _, _ := env.seedTree(t, "营收")

	for i := 0; i < 3; i++ {
		_, err := env.snapshots.Create(tpl.ID, "")
		require.NoError(t, err)
	}
	snaps, err := env.snapshots.List(tpl.ID, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, 3, snaps[0].VersionNumber)
	assert.Equal(t, 1, snaps[2].VersionNumber)
}
