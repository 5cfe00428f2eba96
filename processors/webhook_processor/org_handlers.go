package webhook_processor

import (
	"log/slog"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

func (service *SyncService) handleOrgCreated(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	data := event.Payload.(*models.OrgCreatedData)

	status := data.Status
	if status == "" {
		status = models.ORG_STATUS_ACTIVE
	}

	org := &models.ProductOrg{
		ProductID:          product.ID,
		ExternalOrgID:      data.ExternalOrgID,
		ExternalDatabaseID: data.ExternalDatabaseID,
		Name:               data.Name,
		Slug:               data.Slug,
		Domain:             data.Domain,
		Status:             status,
		LastSyncedAt:       utils.NowNullTime(),
	}

	upsertResult := service.store.UpsertProductOrg(org)
	if upsertResult.Failure() {
		return failedOutcomeResult(upsertResult, "upsert_product_org", "Error upserting product org")
	}

	return utils.SuccessResult(&HandlerOutcome{
		Action:       AUDIT_ACTION_ORG_CREATED,
		ResourceType: RESOURCE_PRODUCT_ORG,
		ResourceID:   org.ID,
		Metadata: map[string]any{
			"external_org_id": data.ExternalOrgID,
		},
	})
}

// handleOrgUpdated applies only the fields present in the payload. When no
// row matches, the creation event lost the race against this update: a row
// is synthesized from the fields at hand with placeholder defaults the
// late creation event will overwrite.
func (service *SyncService) handleOrgUpdated(product *models.Product, event *models.InboundEvent) utils.Result[*HandlerOutcome] {
	data := event.Payload.(*models.OrgUpdatedData)

	updates := map[string]any{
		"last_synced_at": utils.NowNullTime(),
	}
	applyPatch(updates, "name", data.Name)
	applyPatch(updates, "slug", data.Slug)
	applyPatch(updates, "domain", data.Domain)
	applyPatch(updates, "status", data.Status)
	applyPatch(updates, "external_database_id", data.ExternalDatabaseID)

	updateResult := service.store.UpdateProductOrg(product.ID, data.ExternalOrgID, updates)
	if updateResult.Failure() {
		return failedOutcomeResult(updateResult, "update_product_org", "Error updating product org")
	}

	if updateResult.Value() > 0 {
		return utils.SuccessResult(&HandlerOutcome{
			Action:       AUDIT_ACTION_ORG_UPDATED,
			ResourceType: RESOURCE_PRODUCT_ORG,
			ResourceID:   data.ExternalOrgID,
			Metadata: map[string]any{
				"external_org_id": data.ExternalOrgID,
			},
		})
	}

	service.logger.Warn(
		"Org update arrived before its creation event, synthesizing the row",
		slog.String("event_id", event.EventID),
		slog.String("external_org_id", data.ExternalOrgID),
	)

	org := &models.ProductOrg{
		ProductID:          product.ID,
		ExternalOrgID:      data.ExternalOrgID,
		ExternalDatabaseID: data.ExternalDatabaseID.ValuePtr(),
		Name:               models.UNKNOWN_ORG_NAME,
		Slug:               data.Slug.ValuePtr(),
		Domain:             data.Domain.ValuePtr(),
		Status:             models.ORG_STATUS_ACTIVE,
		LastSyncedAt:       utils.NowNullTime(),
	}
	if data.Name.Present() && !data.Name.Null() {
		org.Name = data.Name.Value()
	}
	if data.Status.Present() && !data.Status.Null() {
		org.Status = data.Status.Value()
	}

	createResult := service.store.CreateProductOrgIfAbsent(org)
	if createResult.Failure() {
		return failedOutcomeResult(createResult, "create_product_org", "Error creating product org")
	}

	return utils.SuccessResult(&HandlerOutcome{
		Action:       AUDIT_ACTION_ORG_UPDATED,
		ResourceType: RESOURCE_PRODUCT_ORG,
		ResourceID:   createResult.Value().ID,
		Metadata: map[string]any{
			"external_org_id": data.ExternalOrgID,
			"synthesized":     true,
		},
	})
}
