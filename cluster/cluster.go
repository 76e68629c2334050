// Package cluster groups pins that would overlap on the map.
package cluster

import (
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
)

// Group clusters pins greedily in the given order: the first unclustered pin seeds a cluster that
// takes every unclustered pin within thresholdMeters of the seed. Membership is decided against the
// seed only, so two members of a cluster may be further apart than the threshold.
//
// The result only depends on the input, hence re-grouping the same pins yields the same clusters.
func Group(pins []md.Pin, thresholdMeters float64) []md.Cluster {
	clustered := make([]bool, len(pins))
	var cs []md.Cluster
	for i := range pins {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		seed := pins[i].Location()
		members := []md.Pin{pins[i]}
		for j := i + 1; j < len(pins); j++ {
			if clustered[j] {
				continue
			}
			if geo.DistanceMeters(seed, pins[j].Location()) <= thresholdMeters {
				clustered[j] = true
				members = append(members, pins[j])
			}
		}
		cs = append(cs, md.Cluster{Location: centroid(members), Members: members})
	}
	return cs
}

func centroid(pins []md.Pin) md.Location {
	var lat, lon float64
	for i := range pins {
		lat += pins[i].Latitude
		lon += pins[i].Longitude
	}
	n := float64(len(pins))
	return md.Location{Latitude: lat / n, Longitude: lon / n}
}
