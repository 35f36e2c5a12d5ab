package fdr

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

var groupPattern = regexp.MustCompile(`^\d+/`)

// ProteinGroupFormat reports whether every identification carries a protein
// group of the form "N/proteinA/proteinB".
func ProteinGroupFormat(ids []*core.Identification) bool {
	for _, id := range ids {
		if !groupPattern.MatchString(id.Protein) {
			return false
		}
	}
	return true
}

// ParseProteinGroup splits "N/proteinA/proteinB" into its member proteins.
func ParseProteinGroup(s string) ([]string, error) {
	count, rest, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("protein group %q: missing member count", s)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return nil, fmt.Errorf("protein group %q: invalid member count: %w", s, err)
	}
	var members []string
	for _, p := range strings.Split(rest, "/") {
		if p != "" {
			members = append(members, p)
		}
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("protein group %q: no member proteins", s)
	}
	// Protein names may themselves contain '/'. Trust the listed count only
	// when it agrees with the split.
	if n != len(members) && n == 1 {
		members = []string{rest}
	}
	return members, nil
}

// FormatProteinGroup is the inverse of ParseProteinGroup.
func FormatProteinGroup(members []string) string {
	return strconv.Itoa(len(members)) + "/" + strings.Join(members, "/")
}

type proteinGroup struct {
	label    string
	peptides []string
	best     *core.Identification
	decoy    bool
}

// Protein infers leading protein groups from peptide-level identifications
// and applies the FDR cutoff to them. Proteins explained by the same
// peptides are merged, and the minimal set of groups covering every
// peptide is chosen greedily. Each accepted group's peptides are returned
// as copies carrying the group label, best-peptide cosine and a uniqueness
// flag, ordered by group rank then peptide score.
func Protein(peptides []*core.Identification, threshold float64) ([]*core.Identification, error) {
	// Best row per peptide, then the peptides of each protein
	byPeptide := make(map[string]*core.Identification, len(peptides))
	proteinPeptides := make(map[string]map[string]bool)
	for _, id := range peptides {
		if prev, ok := byPeptide[id.Peptide]; ok && prev.MaCC >= id.MaCC {
			continue
		}
		byPeptide[id.Peptide] = id
	}
	for pep, id := range byPeptide {
		members, err := ParseProteinGroup(id.Protein)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if proteinPeptides[m] == nil {
				proteinPeptides[m] = make(map[string]bool)
			}
			proteinPeptides[m][pep] = true
		}
	}

	groups := mergeProteins(proteinPeptides, byPeptide)
	leading := coverPeptides(groups)

	// A peptide is unique when exactly one leading group explains it
	memberships := make(map[string]int)
	for _, g := range leading {
		for _, p := range g.peptides {
			memberships[p]++
		}
	}

	// Rank groups by their best peptide
	sort.SliceStable(leading, func(i, j int) bool {
		if leading[i].best.MaCC != leading[j].best.MaCC {
			return leading[i].best.MaCC > leading[j].best.MaCC
		}
		return leading[i].label < leading[j].label
	})
	accepted, err := Filter(leading, func(g *proteinGroup) bool { return g.decoy }, threshold)
	if err != nil {
		return nil, err
	}

	// Emit every peptide of each accepted group
	var out []*core.Identification
	for _, g := range accepted {
		rows := make([]*core.Identification, 0, len(g.peptides))
		for _, p := range g.peptides {
			row := *byPeptide[p]
			row.LeadingProtein = g.label
			row.ProteinCosine = g.best.Cosine
			row.UniquePeptide = memberships[p] == 1
			rows = append(rows, &row)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].MaCC != rows[j].MaCC {
				return rows[i].MaCC > rows[j].MaCC
			}
			return rows[i].Peptide < rows[j].Peptide
		})
		out = append(out, rows...)
	}
	return out, nil
}

// mergeProteins collapses proteins with identical peptide sets into groups,
// returned sorted by label.
func mergeProteins(proteinPeptides map[string]map[string]bool, byPeptide map[string]*core.Identification) []*proteinGroup {
	type set struct {
		members  []string
		peptides []string
	}
	sets := make(map[string]*set)
	for protein, peps := range proteinPeptides {
		list := make([]string, 0, len(peps))
		for p := range peps {
			list = append(list, p)
		}
		sort.Strings(list)
		k := strings.Join(list, "\x00")
		s, ok := sets[k]
		if !ok {
			s = &set{peptides: list}
			sets[k] = s
		}
		s.members = append(s.members, protein)
	}

	groups := make([]*proteinGroup, 0, len(sets))
	for _, s := range sets {
		sort.Strings(s.members)
		g := &proteinGroup{
			label:    FormatProteinGroup(s.members),
			peptides: s.peptides,
			decoy:    true,
		}
		// Score is the best peptide; decoy only if every peptide is
		for _, p := range s.peptides {
			id := byPeptide[p]
			if g.best == nil || id.MaCC > g.best.MaCC {
				g.best = id
			}
			if !id.IsDecoy() {
				g.decoy = false
			}
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].label < groups[j].label })
	return groups
}

// coverPeptides picks groups until every peptide is explained, each time
// taking the group explaining the most peptides not yet covered. Ties go to
// the larger group, then to the earlier label.
func coverPeptides(groups []*proteinGroup) []*proteinGroup {
	covered := make(map[string]bool)
	used := make([]bool, len(groups))
	var leading []*proteinGroup
	for {
		bestIdx, bestGain := -1, 0
		for i, g := range groups {
			if used[i] {
				continue
			}
			// Count peptides this group would newly cover
			gain := 0
			for _, p := range g.peptides {
				if !covered[p] {
					gain++
				}
			}
			if gain > bestGain || (gain == bestGain && gain > 0 && len(g.peptides) > len(groups[bestIdx].peptides)) {
				bestIdx, bestGain = i, gain
			}
		}
		if bestIdx < 0 {
			return leading
		}
		used[bestIdx] = true
		leading = append(leading, groups[bestIdx])
		for _, p := range groups[bestIdx].peptides {
			covered[p] = true
		}
	}
}
