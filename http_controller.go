package warden

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// HTTPController mounts the HTTP surface over the auth, role, and permission
// services. Handlers return domain errors; translation to status codes and
// response bodies happens once, in HTTPErrorHandler.
type HTTPController struct {
	auth        *AuthService
	roles       *RoleService
	permissions *PermissionService
	gate        *Gate
	logger      Logger
}

// NewHTTPController wires a controller over the three services. The
// permission gate is built from the auth service's resolver.
func NewHTTPController(auth *AuthService, roles *RoleService, permissions *PermissionService) *HTTPController {
	return &HTTPController{
		auth:        auth,
		roles:       roles,
		permissions: permissions,
		gate:        NewGate(auth.Resolver()),
		logger:      defLogger{},
	}
}

// WithLogger overrides the controller logger.
func (h *HTTPController) WithLogger(logger Logger) *HTTPController {
	if logger != nil {
		h.logger = logger
		h.gate = h.gate.WithLogger(logger)
	}
	return h
}

// HTTPErrorHandler translates domain errors into JSON responses. Rich errors
// carry their own status code; anything unrecognized is a 500 with the
// detail kept out of the body.
func HTTPErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c *fiber.Ctx, err error) error {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			status := richErr.Code
			if status < fiber.StatusBadRequest {
				status = fiber.StatusInternalServerError
			}
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed: %v", err)
			}
			body := fiber.Map{
				"message":   richErr.Message,
				"text_code": richErr.TextCode,
			}
			if len(richErr.Metadata) > 0 {
				body["metadata"] = richErr.Metadata
			}
			return c.Status(status).JSON(fiber.Map{"error": body})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiber.Map{"message": fiberErr.Message},
			})
		}

		logger.Error("unhandled error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"message": "internal server error"},
		})
	}
}

// RegisterRoutes mounts every route on the given router.
func (h *HTTPController) RegisterRoutes(app fiber.Router) {
	auth := app.Group("/auth")
	auth.Post("/register", h.register)
	auth.Post("/login", h.login)
	auth.Post("/refresh", h.refresh)
	auth.Post("/reactivate", h.reactivate)
	auth.Post("/password-reset", h.requestPasswordReset)
	auth.Post("/password-reset/confirm", h.resetPassword)
	auth.Post("/verify-email", h.verifyEmail)

	me := app.Group("/me", RequireAuth(h.auth))
	me.Get("/", h.profile)
	me.Patch("/", h.updateProfile)
	me.Post("/password", h.changePassword)
	me.Post("/email", h.changeEmail)
	me.Post("/deactivate", h.deactivateSelf)
	me.Post("/verify-email", h.requestEmailVerification)

	accounts := app.Group("/accounts", RequireAuth(h.auth))
	accounts.Get("/", RequirePermission(h.gate, "account:read_all"), h.listAccounts)
	accounts.Get("/:id", RequirePermission(h.gate, "account:read_all"), h.getAccount)
	accounts.Patch("/:id", RequirePermission(h.gate, "account:update"), h.updateAccount)
	accounts.Delete("/:id", RequirePermission(h.gate, "account:delete"), h.deleteAccount)
	accounts.Post("/:id/deactivate", RequirePermission(h.gate, "account:update_status"), h.deactivateAccount)

	roles := app.Group("/roles", RequireAuth(h.auth))
	roles.Get("/", RequirePermission(h.gate, "role:read_all"), h.listRoles)
	roles.Post("/", RequirePermission(h.gate, "role:create"), h.createRole)
	roles.Get("/:id", RequirePermission(h.gate, "role:read_all"), h.getRole)
	roles.Patch("/:id", RequirePermission(h.gate, "role:update"), h.updateRole)
	roles.Delete("/:id", RequirePermission(h.gate, "role:delete"), h.deleteRole)
	roles.Put("/:id/permissions/:permissionID", RequirePermission(h.gate, "role:update"), h.assignPermission)
	roles.Delete("/:id/permissions/:permissionID", RequirePermission(h.gate, "role:update"), h.removePermission)

	permissions := app.Group("/permissions", RequireAuth(h.auth))
	permissions.Get("/", RequirePermission(h.gate, "permission:read_all"), h.listPermissions)
	permissions.Post("/", RequirePermission(h.gate, "permission:create"), h.createPermission)
	permissions.Get("/:id", RequirePermission(h.gate, "permission:read_all"), h.getPermission)
	permissions.Patch("/:id", RequirePermission(h.gate, "permission:update"), h.updatePermission)
	permissions.Delete("/:id", RequirePermission(h.gate, "permission:delete"), h.deletePermission)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type changeEmailRequest struct {
	NewEmail string `json:"new_email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type selfUpdateRequest struct {
	FullName    *string `json:"full_name"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phone_number"`
}

func (h *HTTPController) register(c *fiber.Ctx) error {
	var in RegisterInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	view, err := h.auth.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *HTTPController) login(c *fiber.Ctx) error {
	var in loginRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	pair, err := h.auth.Login(c.UserContext(), in.Username, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (h *HTTPController) refresh(c *fiber.Ctx) error {
	var in refreshRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	pair, err := h.auth.Refresh(c.UserContext(), in.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (h *HTTPController) reactivate(c *fiber.Ctx) error {
	var in loginRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	if err := h.auth.Reactivate(c.UserContext(), in.Username, in.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "account reactivated"})
}

func (h *HTTPController) requestPasswordReset(c *fiber.Ctx) error {
	var in passwordResetRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	message, err := h.auth.RequestPasswordReset(c.UserContext(), in.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": message})
}

func (h *HTTPController) resetPassword(c *fiber.Ctx) error {
	var in passwordResetConfirmRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.UserContext(), in.Token, in.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}

func (h *HTTPController) verifyEmail(c *fiber.Ctx) error {
	var in verifyEmailRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	if err := h.auth.VerifyEmail(c.UserContext(), in.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "email verified"})
}

func (h *HTTPController) profile(c *fiber.Ctx) error {
	account := AccountFromContext(c)
	view, err := h.auth.Profile(c.UserContext(), account.ID)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// updateProfile only touches the profile fields an account owns. Role,
// status, and superuser changes go through the admin route.
func (h *HTTPController) updateProfile(c *fiber.Ctx) error {
	var in selfUpdateRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	account := AccountFromContext(c)
	view, err := h.auth.UpdateAccount(c.UserContext(), account.ID, UpdateAccountInput{
		FullName:    in.FullName,
		Address:     in.Address,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *HTTPController) changePassword(c *fiber.Ctx) error {
	var in changePasswordRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	account := AccountFromContext(c)
	if err := h.auth.ChangePassword(c.UserContext(), account.ID, in.OldPassword, in.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}

func (h *HTTPController) changeEmail(c *fiber.Ctx) error {
	var in changeEmailRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	account := AccountFromContext(c)
	if err := h.auth.ChangeEmail(c.UserContext(), account.ID, in.NewEmail, in.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "verification sent to new address"})
}

func (h *HTTPController) deactivateSelf(c *fiber.Ctx) error {
	account := AccountFromContext(c)
	if err := h.auth.Deactivate(c.UserContext(), account.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "account deactivated"})
}

func (h *HTTPController) requestEmailVerification(c *fiber.Ctx) error {
	account := AccountFromContext(c)
	if err := h.auth.RequestEmailVerification(c.UserContext(), account.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "verification sent"})
}

func (h *HTTPController) listAccounts(c *fiber.Ctx) error {
	views, err := h.auth.ListAccounts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(views)
}

func (h *HTTPController) getAccount(c *fiber.Ctx) error {
	view, err := h.auth.Profile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *HTTPController) updateAccount(c *fiber.Ctx) error {
	var in UpdateAccountInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	view, err := h.auth.UpdateAccount(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *HTTPController) deleteAccount(c *fiber.Ctx) error {
	if err := h.auth.DeleteAccount(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPController) deactivateAccount(c *fiber.Ctx) error {
	if err := h.auth.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "account deactivated"})
}

func (h *HTTPController) listRoles(c *fiber.Ctx) error {
	roles, err := h.roles.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(roles)
}

func (h *HTTPController) createRole(c *fiber.Ctx) error {
	var in RoleInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	role, err := h.roles.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(role)
}

func (h *HTTPController) getRole(c *fiber.Ctx) error {
	role, err := h.roles.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(role)
}

func (h *HTTPController) updateRole(c *fiber.Ctx) error {
	var in RoleInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	role, err := h.roles.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(role)
}

func (h *HTTPController) deleteRole(c *fiber.Ctx) error {
	if err := h.roles.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *HTTPController) assignPermission(c *fiber.Ctx) error {
	role, err := h.roles.AssignPermission(c.UserContext(), c.Params("id"), c.Params("permissionID"))
	if err != nil {
		return err
	}
	return c.JSON(role)
}

func (h *HTTPController) removePermission(c *fiber.Ctx) error {
	role, err := h.roles.RemovePermission(c.UserContext(), c.Params("id"), c.Params("permissionID"))
	if err != nil {
		return err
	}
	return c.JSON(role)
}

func (h *HTTPController) listPermissions(c *fiber.Ctx) error {
	permissions, err := h.permissions.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(permissions)
}

func (h *HTTPController) createPermission(c *fiber.Ctx) error {
	var in PermissionInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	permission, err := h.permissions.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(permission)
}

func (h *HTTPController) getPermission(c *fiber.Ctx) error {
	permission, err := h.permissions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(permission)
}

func (h *HTTPController) updatePermission(c *fiber.Ctx) error {
	var in PermissionInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	permission, err := h.permissions.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(permission)
}

func (h *HTTPController) deletePermission(c *fiber.Ctx) error {
	if err := h.permissions.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}
