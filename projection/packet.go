package projection

import (
	"math"
	"strconv"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/schema"
)

// Packet is one unit of distributed projection work.
type Packet struct {
	QueryID        string                 `json:"query_id"`
	Index          int                    `json:"index"`
	Offset         int                    `json:"offset"`
	SchemaVersion  string                 `json:"schema_version,omitempty"`
	ProjectionType schema.QualifiedName   `json:"projection_type,omitempty"`
	Items          []*facts.TypedInstance `json:"items"`
	Facts          []*facts.TypedInstance `json:"facts,omitempty"`
}

// Key identifies the packet within the cluster.
func (p Packet) Key() string {
	return p.QueryID + "." + strconv.Itoa(p.Index)
}

// PacketResult is the output of one packet, in packet item order.
type PacketResult struct {
	QueryID string                 `json:"query_id"`
	Index   int                    `json:"index"`
	Member  string                 `json:"member,omitempty"`
	Items   []*facts.TypedInstance `json:"items,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Partition splits the job items into ceil(len/size) packets of at most size
// items. Every item lands in exactly one packet.
func Partition(job Job, size int) []Packet {
	if size <= 0 {
		size = 1
	}
	count := (len(job.Items) + size - 1) / size
	packets := make([]Packet, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := min(start+size, len(job.Items))
		packets = append(packets, Packet{
			QueryID:        job.QueryID,
			Index:          i,
			Offset:         start,
			SchemaVersion:  job.SchemaVersion,
			ProjectionType: job.ProjectionType,
			Items:          job.Items[start:end],
			Facts:          job.Facts,
		})
	}
	return packets
}

// Place decides which packets run remotely. Each of the remote members is
// weighted by bias against one local share, so the local fraction is
// 1/(1+bias*members). Placement is deterministic and spreads local packets
// evenly. Without remote members everything runs locally.
func Place(packets, members int, bias float64) []bool {
	remote := make([]bool, packets)
	if members <= 0 || bias <= 0 {
		return remote
	}
	local := 1 / (1 + bias*float64(members))
	for i := range remote {
		remote[i] = math.Floor(float64(i+1)*local) <= math.Floor(float64(i)*local)
	}
	return remote
}
