package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"rentals/src/common"
	"rentals/src/config"
	"rentals/src/lib"
	"rentals/src/models"
	"rentals/src/types"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Clients carry the inbound caller's bearer token on every outbound call.
// Tests swap these for stand-ins.
var (
	productsClient  = lib.NewProductsClient(lib.ContextTokenProvider{})
	customersClient = lib.NewCustomersClient(lib.ContextTokenProvider{})
	notifyClient    = lib.NewNotificationsClient(lib.ContextTokenProvider{})
)

func respondError(ctx *gin.Context, err error) {
	var notFound *types.NotFoundError
	var invalidTransition *types.InvalidTransitionError
	var validation *types.ValidationError
	switch {
	case errors.As(err, &notFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &invalidTransition):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalidTransition.Error()})
	case errors.As(err, &validation):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "errors": validation.Fields})
	case errors.Is(err, types.ErrConcurrencyConflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrExternalDependency):
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Printf("Could not complete request: %s\n", err.Error())
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error while processing request"})
	}
}

// bindingErrors batches per-field failures so the caller sees every problem
// at once, before any state is touched.
func bindingErrors(ctx *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "errors": fields})
		return
	}
	ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(config.DATE_PARSE_FORMAT, s)
	return t
}

func rentalHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/rentals", func(ctx *gin.Context) {
			var body types.CreateRentalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				bindingErrors(ctx, err)
				return
			}
			actor := ctx.GetString("actor")

			inventoryItemID := uuid.MustParse(body.InventoryItemID)
			item := productsClient.GetInventoryItemByID(ctx, inventoryItemID)
			switch item.State {
			case lib.LookupMissing:
				respondError(ctx, types.NewNotFoundError("inventory item", body.InventoryItemID))
				return
			case lib.LookupUnavailable:
				// Creating a booking against an item we cannot verify is not
				// a partial-read situation, it is a hard failure.
				respondError(ctx, types.ErrExternalDependency)
				return
			}
			if item.Value.Status != types.INVENTORY_AVAILABLE {
				respondError(ctx, types.NewValidationError(map[string]string{
					"inventory_item_id": "inventory item is not available for rental",
				}))
				return
			}

			bookingDate := time.Now().UTC()
			if body.BookingDate != nil {
				bookingDate = parseDate(*body.BookingDate)
			}
			rental := models.Rental{
				ProductID:         uuid.MustParse(body.ProductID),
				InventoryItemID:   inventoryItemID,
				CustomerID:        uuid.MustParse(body.CustomerID),
				ShippingAddressID: uuid.MustParse(body.ShippingAddressID),
				BookingDate:       bookingDate,
				StartDate:         parseDate(body.StartDate),
				EndDate:           parseDate(body.EndDate),
				RentalPrice:       body.RentalPrice,
				DailyRate:         body.DailyRate,
				SecurityDeposit:   body.SecurityDeposit,
				LateFee:           body.LateFee,
				DamageFee:         body.DamageFee,
				Notes:             body.Notes,
				Height:            body.Height,
				Chest:             body.Chest,
				Waist:             body.Waist,
				Hip:               body.Hip,
				Shoulder:          body.Shoulder,
				SleeveLength:      body.SleeveLength,
				Inseam:            body.Inseam,
			}
			if err := common.CreateRental(actor, &rental, body.Notes); err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": rental.ID, "rental_number": rental.RentalNumber})
		}).
		GET("/rentals", func(ctx *gin.Context) {
			var filters types.RentalQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				bindingErrors(ctx, err)
				return
			}
			rentals, count, err := common.ListRentals(&filters)
			if err != nil {
				respondError(ctx, err)
				return
			}
			now := time.Now().UTC()
			data := make([]*types.APIResponseRental, 0, len(rentals))
			for i := range rentals {
				data = append(data, common.BuildRentalResponse(&rentals[i], nil, now))
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": count})
		}).
		GET("/rentals/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			rental, err := common.GetRental(uuid.MustParse(params.ID))
			if err != nil {
				respondError(ctx, err)
				return
			}
			enrichment := common.EnrichRental(ctx, rental, productsClient, customersClient)
			if ctx.Query("strict") == "true" {
				if unavailable := enrichment.Unavailable(); len(unavailable) > 0 {
					ctx.JSON(http.StatusBadGateway, gin.H{
						"error":       types.ErrExternalDependency.Error(),
						"unavailable": unavailable,
					})
					return
				}
			}
			resp := common.BuildRentalResponse(rental, enrichment, time.Now().UTC())
			ctx.JSON(http.StatusOK, gin.H{"data": resp})
		}).
		PUT("/rentals/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateRentalRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				bindingErrors(ctx, err)
				return
			}
			actor := ctx.GetString("actor")
			updated, err := common.UpdateRental(actor, uuid.MustParse(params.ID), &body)
			if err != nil {
				respondError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": common.BuildRentalResponse(updated, nil, time.Now().UTC())})
		}).
		PUT("/rentals/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateRentalStatusRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				bindingErrors(ctx, err)
				return
			}
			next := types.RentalStatus(body.Status)
			if !next.Valid() {
				respondError(ctx, types.NewValidationError(map[string]string{"status": "unknown status"}))
				return
			}
			change := common.StatusChange{
				Next:    next,
				Notes:   body.Notes,
				Version: body.Version,
			}
			if body.ActualStartDate != nil {
				d := parseDate(*body.ActualStartDate)
				change.ActualStart = &d
			}
			if body.ActualReturnDate != nil {
				d := parseDate(*body.ActualReturnDate)
				change.ActualEnd = &d
			}
			actor := ctx.GetString("actor")
			updated, err := common.ChangeRentalStatus(actor, uuid.MustParse(params.ID), &change)
			if err != nil {
				respondError(ctx, err)
				return
			}
			common.SyncInventoryStatus(updated, productsClient)

			cp := ctx.Copy()
			go func() {
				enrichment := common.EnrichRental(cp, updated, productsClient, customersClient)
				notifyClient.SendAsync(common.NewStatusChangedEvent(updated, enrichment))
			}()

			ctx.JSON(http.StatusOK, gin.H{"data": common.BuildRentalResponse(updated, nil, time.Now().UTC())})
		}).
		DELETE("/rentals/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			actor := ctx.GetString("actor")
			hard := ctx.Query("hard") == "true"
			if err := common.DeleteRental(actor, uuid.MustParse(params.ID), hard); err != nil {
				respondError(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/rentals/:id/timeline", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			entries, err := common.ListTimeline(uuid.MustParse(params.ID))
			if err != nil {
				respondError(ctx, err)
				return
			}
			data := make([]types.APIResponseTimeline, 0, len(entries))
			for _, e := range entries {
				data = append(data, types.APIResponseTimeline{
					ID:        e.ID,
					RentalID:  e.RentalID,
					ChangedAt: e.CreatedAt,
					Status:    e.Status,
					Notes:     e.Notes,
					ChangedBy: e.CreatedBy,
				})
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		})
	return g
}
