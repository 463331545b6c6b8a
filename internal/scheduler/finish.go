package scheduler

import (
	"math"
	"sort"

	"jukebox/internal/domain"
)

// computeFinishTimes assigns packet-by-packet GPS finish times. Packets are
// grouped by owning user; within a user they are served FIFO by arrival, so
// each finish time chains off the previous one:
//
//	base   = max(lastFinish, arrival)
//	finish = base + length/weight
//
// The input may mix users (the startup full-queue recompute does); a
// per-user lastFinish map keeps the chains independent. lengths maps packet
// id to virtual service length in seconds.
func computeFinishTimes(packets []domain.Packet, lengths map[domain.PacketID]float64) map[domain.PacketID]float64 {
	sorted := make([]domain.Packet, len(packets))
	copy(sorted, packets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ArrivalTime < sorted[j].ArrivalTime
	})

	finish := make(map[domain.PacketID]float64, len(sorted))
	lastFinish := make(map[string]float64)

	for _, p := range sorted {
		base := p.ArrivalTime
		if last, ok := lastFinish[p.User]; ok {
			base = math.Max(last, p.ArrivalTime)
		}
		f := base + lengths[p.ID]/p.Weight()
		finish[p.ID] = f
		lastFinish[p.User] = f
	}
	return finish
}

// sortForPlayback orders packets by the global play order: finish time
// ascending, then arrival time, then insertion sequence.
func sortForPlayback(packets []domain.Packet) {
	sort.SliceStable(packets, func(i, j int) bool {
		a, b := packets[i], packets[j]
		if a.FinishTime != b.FinishTime {
			return a.FinishTime < b.FinishTime
		}
		if a.ArrivalTime != b.ArrivalTime {
			return a.ArrivalTime < b.ArrivalTime
		}
		return a.Seq < b.Seq
	})
}
