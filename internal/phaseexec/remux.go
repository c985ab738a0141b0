package phaseexec

import (
	"sort"
	"strconv"
	"strings"

	"spindle/internal/externaltool"
	"spindle/internal/mediainfo"
	"spindle/internal/planmodel"
)

// metadataEdits collapses a plan's per-track actions into the batch
// externaltool.MetadataEdit needs, one entry per distinct TrackIndex.
func metadataEdits(plan planmodel.Plan) []externaltool.MetadataEdit {
	byTrack := map[int]*externaltool.MetadataEdit{}
	order := []int{}

	get := func(idx int) *externaltool.MetadataEdit {
		if e, ok := byTrack[idx]; ok {
			return e
		}
		e := &externaltool.MetadataEdit{TrackIndex: idx}
		byTrack[idx] = e
		order = append(order, idx)
		return e
	}

	for _, a := range plan.Actions {
		if a.TrackIndex == nil {
			continue // file-level actions (reorder) carry no per-track metadata
		}
		idx := *a.TrackIndex
		switch a.Type {
		case planmodel.ActionSetDefault:
			v := true
			get(idx).Default = &v
		case planmodel.ActionClearDefault:
			v := false
			get(idx).Default = &v
		case planmodel.ActionSetForced:
			v := a.DesiredValue == "true"
			get(idx).Forced = &v
		case planmodel.ActionSetTitle:
			get(idx).Title = a.DesiredValue
		case planmodel.ActionSetLanguage:
			get(idx).Language = a.DesiredValue
		}
	}

	sort.Ints(order)
	edits := make([]externaltool.MetadataEdit, 0, len(order))
	for _, idx := range order {
		edits = append(edits, *byTrack[idx])
	}
	return edits
}

// reorderTarget parses the single file-level REORDER action's desired
// value ("0,2,1,3") into an ordered slice of input track indices, or nil
// if no reorder is planned.
func reorderTarget(plan planmodel.Plan) []int {
	for _, a := range plan.Actions {
		if a.Type != planmodel.ActionReorder {
			continue
		}
		parts := strings.Split(a.DesiredValue, ",")
		out := make([]int, 0, len(parts))
		for _, p := range parts {
			if p == "" {
				continue
			}
			n, err := strconv.Atoi(p)
			if err != nil {
				continue
			}
			out = append(out, n)
		}
		return out
	}
	return nil
}

// buildRemuxPlan computes the stream selection/order a full container
// rewrite needs: kept tracks only, in the REORDER action's desired order
// when present, otherwise their original input order. OutputIndex is
// assigned per-kind so the `-map 0:<input-index>` / `-c:a:<output-index>`
// addressing convention (SPEC_FULL.md Open Question #2) never drifts
// when a preceding track of the same kind was removed.
func buildRemuxPlan(req Request, edits []externaltool.MetadataEdit) externaltool.RemuxPlan {
	kept := map[int]bool{}
	for _, d := range req.PolicyPlan.Dispositions {
		if d.State == planmodel.Kept {
			kept[d.TrackIndex] = true
		}
	}

	order := reorderTarget(req.PolicyPlan)
	if order == nil {
		for _, t := range req.File.Tracks {
			if kept[t.Index] {
				order = append(order, t.Index)
			}
		}
	}

	byIndex := map[int]mediainfo.Track{}
	for _, t := range req.File.Tracks {
		byIndex[t.Index] = t
	}

	outputCounters := map[mediainfo.TrackKind]int{}
	streams := make([]externaltool.StreamMapping, 0, len(order))
	for _, inputIdx := range order {
		track, ok := byIndex[inputIdx]
		if !ok || !kept[inputIdx] {
			continue
		}
		outIdx := outputCounters[track.Kind]
		outputCounters[track.Kind] = outIdx + 1
		streams = append(streams, externaltool.StreamMapping{
			InputIndex:  inputIdx,
			OutputIndex: outIdx,
			Kind:        track.Kind,
		})
	}

	containerFormat := req.File.ContainerFormat
	if req.PolicyPlan.ContainerChange != nil {
		containerFormat = req.PolicyPlan.ContainerChange.Target
	}

	return externaltool.RemuxPlan{
		InputPath:       req.FilePath,
		ContainerFormat: containerFormat,
		Streams:         streams,
		Metadata:        edits,
	}
}
