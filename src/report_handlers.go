package main

import (
	"net/http"
	"strconv"
	"time"

	"rentals/src/db"
	"rentals/src/models"
	"rentals/src/types"

	"github.com/gin-gonic/gin"
)

func reportHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/reports/rentals/dashboard", func(ctx *gin.Context) {
			d := db.GetDb()
			var rows []struct {
				Status types.RentalStatus
				Count  int64
			}
			err := d.
				Model(&models.Rental{}).
				Select("status, count(*) as count").
				Group("status").
				Find(&rows).
				Error
			if err != nil {
				respondError(ctx, err)
				return
			}
			byStatus := map[types.RentalStatus]int64{}
			var total int64
			for _, row := range rows {
				byStatus[row.Status] = row.Count
				total += row.Count
			}

			// Rentals past due but not yet swept still count as overdue here.
			now := time.Now().UTC()
			var pastDue int64
			err = d.
				Model(&models.Rental{}).
				Where("end_date < ?", now).
				Where("status IN ?", []types.RentalStatus{types.RENTAL_ACTIVE, types.RENTAL_OVERDUE}).
				Count(&pastDue).
				Error
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"total_rentals": total,
				"by_status":     byStatus,
				"overdue":       pastDue,
			}})
		}).
		GET("/reports/rentals/revenue", func(ctx *gin.Context) {
			year, err := strconv.Atoi(ctx.DefaultQuery("year", strconv.Itoa(time.Now().UTC().Year())))
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "year must be a number"})
				return
			}
			from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			to := from.AddDate(1, 0, 0)

			d := db.GetDb()
			var rentals []models.Rental
			err = d.
				Model(&models.Rental{}).
				Where("start_date >= ? AND start_date < ?", from, to).
				Where("status IN ?", []types.RentalStatus{
					types.RENTAL_ACTIVE,
					types.RENTAL_OVERDUE,
					types.RENTAL_RETURNED,
					types.RENTAL_COMPLETED,
				}).
				Find(&rentals).
				Error
			if err != nil {
				respondError(ctx, err)
				return
			}

			// Aggregated here rather than in SQL so the report reads the same
			// on every dialect the tests run against.
			months := make([]gin.H, 12)
			totals := make([]float64, 12)
			counts := make([]int64, 12)
			for i := range rentals {
				m := int(rentals[i].StartDate.UTC().Month()) - 1
				totals[m] += rentals[i].TotalAmount()
				counts[m]++
			}
			var yearTotal float64
			for m := 0; m < 12; m++ {
				yearTotal += totals[m]
				months[m] = gin.H{
					"month":   m + 1,
					"revenue": totals[m],
					"rentals": counts[m],
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
				"year":    year,
				"total":   yearTotal,
				"monthly": months,
			}})
		})
	return g
}
