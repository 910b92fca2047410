package report

import (
	"errors"
	"fmt"

	"f1report/internal/table"
)

// Catalog returns the ten race-result reports in run order.
func Catalog() []Definition {
	return []Definition{
		{
			Name:  "top_drivers_points",
			Title: "Top 10 Drivers by Total Points",
			SQL: `
SELECT
    dd.full_name AS driver_name,
    SUM(fr.points) AS total_points
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_DRIVERS dd ON fr.driver_sk = dd.driver_sk
GROUP BY dd.full_name
ORDER BY total_points DESC
LIMIT 10`,
			Columns:  []string{"DRIVER_NAME", "TOTAL_POINTS"},
			Chart:    ChartPie,
			Category: "DRIVER_NAME",
			Value:    "TOTAL_POINTS",
			Coerce:   []table.Coercion{{Column: "TOTAL_POINTS", To: table.KindFloat}},
		},
		{
			Name:  "most_overtakes",
			Title: "Top 10 Races with the Most Overtakes",
			SQL: `
SELECT
    dr.name AS race_name,
    dr.race_date,
    dd.full_name AS driver_name,
    (fr.grid - fr.position) AS overtakes
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_RACES dr ON fr.race_sk = dr.race_sk
JOIN DIMENSIONS.DIM_DRIVERS dd ON fr.driver_sk = dd.driver_sk
WHERE fr.grid > fr.position
ORDER BY overtakes DESC
LIMIT 10`,
			Columns: []string{"RACE_NAME", "RACE_DATE", "DRIVER_NAME", "OVERTAKES"},
			Chart:   ChartScatter,
			X:       "RACE_DATE",
			Y:       "OVERTAKES",
			Group:   "DRIVER_NAME",
			XLabel:  "Race Date",
			YLabel:  "Number of Overtakes",
			Coerce:  []table.Coercion{{Column: "OVERTAKES", To: table.KindInt}},
		},
		{
			Name:  "constructor_points_2022",
			Title: "Total Points Earned by Each Constructor in 2022",
			SQL: `
SELECT
    dc.name AS constructor_name,
    SUM(fr.points) AS total_points
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_CONSTRUCTORS dc ON fr.constructor_sk = dc.constructor_sk
JOIN DIMENSIONS.DIM_RACES dr ON fr.race_sk = dr.race_sk
WHERE dr.year = 2022
GROUP BY dc.name
ORDER BY total_points DESC`,
			Columns:  []string{"CONSTRUCTOR_NAME", "TOTAL_POINTS"},
			Chart:    ChartTreemap,
			Category: "CONSTRUCTOR_NAME",
			Value:    "TOTAL_POINTS",
			Coerce:   []table.Coercion{{Column: "TOTAL_POINTS", To: table.KindFloat}},
		},
		{
			Name:  "avg_finish_by_nationality",
			Title: "Average Finishing Position of Drivers by Nationality",
			SQL: `
SELECT
    dd.nationality,
    AVG(fr.position) AS avg_finishing_position
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_DRIVERS dd ON fr.driver_sk = dd.driver_sk
GROUP BY dd.nationality
ORDER BY avg_finishing_position ASC`,
			Columns:  []string{"NATIONALITY", "AVG_FINISHING_POSITION"},
			Chart:    ChartViolin,
			Category: "NATIONALITY",
			Value:    "AVG_FINISHING_POSITION",
			XLabel:   "Average Finishing Position",
			YLabel:   "Nationality",
			Coerce:   []table.Coercion{{Column: "AVG_FINISHING_POSITION", To: table.KindFloat}},
		},
		{
			Name:  "most_consistent_drivers",
			Title: "Most Consistent Drivers (Lowest Standard Deviation in Finishing Positions)",
			SQL: `
SELECT
    dd.full_name AS driver_name,
    STDDEV(fr.position) AS position_stddev
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_DRIVERS dd ON fr.driver_sk = dd.driver_sk
GROUP BY dd.full_name
HAVING COUNT(*) > 10
ORDER BY position_stddev ASC`,
			Columns:  []string{"DRIVER_NAME", "POSITION_STDDEV"},
			Chart:    ChartBox,
			Category: "DRIVER_NAME",
			Value:    "POSITION_STDDEV",
			XLabel:   "Standard Deviation of Finishing Positions",
			YLabel:   "Driver Name",
			Coerce:   []table.Coercion{{Column: "POSITION_STDDEV", To: table.KindFloat}},
		},
		{
			Name:  "avg_points_per_constructor",
			Title: "Average Points per Race by Constructor",
			SQL: `
SELECT
    dc.name AS constructor_name,
    AVG(fr.points) AS avg_points_per_race
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_CONSTRUCTORS dc ON fr.constructor_sk = dc.constructor_sk
GROUP BY dc.name
ORDER BY avg_points_per_race DESC`,
			Columns:  []string{"CONSTRUCTOR_NAME", "AVG_POINTS_PER_RACE"},
			Chart:    ChartStem,
			Category: "CONSTRUCTOR_NAME",
			Value:    "AVG_POINTS_PER_RACE",
			XLabel:   "Constructor Name",
			YLabel:   "Average Points per Race",
			Coerce:   []table.Coercion{{Column: "AVG_POINTS_PER_RACE", To: table.KindFloat}},
		},
		{
			// positionOrder = 1 is the race winner; the FASTEST_LAPS label is kept as is.
			Name:  "most_wins",
			Title: "Drivers with the Most Wins",
			SQL: `
SELECT
    dd.full_name AS driver_name,
    COUNT(*) AS fastest_laps
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_DRIVERS dd ON fr.driver_sk = dd.driver_sk
WHERE fr.positionOrder = 1
GROUP BY dd.full_name
ORDER BY fastest_laps DESC
LIMIT 10`,
			Columns:  []string{"DRIVER_NAME", "FASTEST_LAPS"},
			Chart:    ChartDonut,
			Category: "DRIVER_NAME",
			Value:    "FASTEST_LAPS",
			Coerce:   []table.Coercion{{Column: "FASTEST_LAPS", To: table.KindInt}},
		},
		{
			Name:  "most_improved_drivers",
			Title: "Most Improved Drivers (Year-over-Year Points Growth)",
			SQL: `
WITH DriverYearlyPoints AS (
    SELECT
        dd.full_name AS driver_name,
        dr.year,
        SUM(fr.points) AS total_points
    FROM FACTS.FACT_RESULTS fr
    JOIN DIMENSIONS.DIM_RACES dr ON fr.race_sk = dr.race_sk
    JOIN DIMENSIONS.DIM_DRIVERS dd ON fr.driver_sk = dd.driver_sk
    GROUP BY dd.full_name, dr.year
)
SELECT
    driver_name,
    MAX(total_points) - MIN(total_points) AS points_growth
FROM DriverYearlyPoints
GROUP BY driver_name
ORDER BY points_growth DESC
LIMIT 10`,
			Columns:  []string{"DRIVER_NAME", "POINTS_GROWTH"},
			Chart:    ChartBar,
			Category: "DRIVER_NAME",
			Value:    "POINTS_GROWTH",
			XLabel:   "Driver Name",
			YLabel:   "Points Growth",
			Coerce:   []table.Coercion{{Column: "POINTS_GROWTH", To: table.KindFloat}},
		},
		{
			Name:  "qualifying_vs_race",
			Title: "Qualifying Performance vs. Race Performance for Drivers",
			SQL: `
WITH QualifyingPerformance AS (
    SELECT
        fq.driver_sk,
        AVG(fq.position) AS avg_qualifying_position
    FROM FACTS.FACT_QUALIFYING fq
    WHERE fq.position IS NOT NULL
    GROUP BY fq.driver_sk
),
RacePerformance AS (
    SELECT
        fr.driver_sk,
        AVG(fr.position) AS avg_race_position
    FROM FACTS.FACT_RESULTS fr
    WHERE fr.position IS NOT NULL
    GROUP BY fr.driver_sk
)
SELECT
    dd.full_name AS driver_name,
    qp.avg_qualifying_position,
    rp.avg_race_position,
    abs(rp.avg_race_position - qp.avg_qualifying_position) AS performance_difference
FROM QualifyingPerformance qp
JOIN RacePerformance rp ON qp.driver_sk = rp.driver_sk
JOIN DIMENSIONS.DIM_DRIVERS dd ON qp.driver_sk = dd.driver_sk
WHERE qp.avg_qualifying_position IS NOT NULL
  AND rp.avg_race_position IS NOT NULL
ORDER BY performance_difference DESC`,
			Columns: []string{"DRIVER_NAME", "AVG_QUALIFYING_POSITION", "AVG_RACE_POSITION", "PERFORMANCE_DIFFERENCE"},
			Chart:   ChartScatter,
			X:       "AVG_QUALIFYING_POSITION",
			Y:       "AVG_RACE_POSITION",
			XLabel:  "Average Qualifying Position",
			YLabel:  "Average Race Position",
			Coerce: []table.Coercion{
				{Column: "AVG_QUALIFYING_POSITION", To: table.KindFloat},
				{Column: "AVG_RACE_POSITION", To: table.KindFloat},
				{Column: "PERFORMANCE_DIFFERENCE", To: table.KindFloat},
			},
		},
		{
			Name:  "diverse_winner_circuits",
			Title: "Circuits with the Most Diverse Winners",
			SQL: `
SELECT
    dc.name AS circuit_name,
    COUNT(DISTINCT fr.driver_sk) AS unique_winners
FROM FACTS.FACT_RESULTS fr
JOIN DIMENSIONS.DIM_RACES dr ON fr.race_sk = dr.race_sk
JOIN DIMENSIONS.DIM_CIRCUITS dc ON dr.circuitId = dc.circuitId
WHERE fr.position = 1
GROUP BY dc.name
ORDER BY unique_winners DESC`,
			Columns:    []string{"CIRCUIT_NAME", "UNIQUE_WINNERS"},
			Chart:      ChartTreemap,
			Category:   "CIRCUIT_NAME",
			Value:      "UNIQUE_WINNERS",
			Coerce:     []table.Coercion{{Column: "UNIQUE_WINNERS", To: table.KindInt}},
			LabelWidth: 15,
		},
	}
}

// ErrUnknownReport is returned by Select for a name missing from the catalog.
var ErrUnknownReport = errors.New("unknown report")

// Select returns the catalog entries with the given names, keeping catalog
// order. An empty list selects everything.
func Select(defs []Definition, names []string) ([]Definition, error) {
	if len(names) == 0 {
		return defs, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []Definition
	for _, d := range defs {
		if wanted[d.Name] {
			out = append(out, d)
			delete(wanted, d.Name)
		}
	}
	for n := range wanted {
		return nil, fmt.Errorf("%w %q", ErrUnknownReport, n)
	}
	return out, nil
}
